//go:build swag

package swaggerkit

import docs "arledger/internal/services/api/docs"

// rawDoc is the spec generated by swag init into services/api/docs
func rawDoc() string { return docs.SwaggerInfo.ReadDoc() }

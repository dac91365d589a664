//go:build !swag

package swaggerkit

// rawDoc is an empty spec so the UI loads in builds without generated docs
func rawDoc() string {
	return `{"swagger":"2.0","info":{"title":"arledger API","version":"0.0.0"},"paths":{}}`
}

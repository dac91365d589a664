package artifacts

import (
	"context"

	"arledger/internal/platform/config"
	"arledger/internal/services/dunning/domain"
)

// FromConfig picks the S3 store when CORE_S3_BUCKET is set, else a directory under ARTIFACTS_DIR
func FromConfig(ctx context.Context, cfg config.Conf) (domain.ArtifactStore, error) {
	c := cfg.Prefix("CORE_S3_")
	if bucket := c.MayString("BUCKET", ""); bucket != "" {
		s, err := NewS3(ctx, S3Options{
			Endpoint:     c.MayString("ENDPOINT", ""),
			Region:       c.MayString("REGION", "eu-central-1"),
			Bucket:       bucket,
			AccessKey:    c.MayString("ACCESS_KEY", ""),
			SecretKey:    c.MayString("SECRET_KEY", ""),
			UsePathStyle: c.MayBool("PATH_STYLE", false),
		})
		if err != nil {
			return nil, err
		}
		if c.MayBool("ENSURE_BUCKET", false) {
			if err := s.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
	return NewDir(cfg.MayString("ARTIFACTS_DIR", "var/artifacts"))
}

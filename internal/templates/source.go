package templates

import (
	"fmt"

	"onepager/internal/config"
)

// FromConfig builds the Source described by the templates section. Remote
// sources are wrapped in an LRU cache.
func FromConfig(cfg config.TemplatesConfig) (Source, error) {
	switch cfg.Source {
	case "", "embedded":
		return EmbeddedSource{}, nil
	case "dir":
		return DirSource{Dir: cfg.Dir}, nil
	case "http":
		return NewCachedSource(NewHTTPSource(cfg.BaseURL), cfg.CacheSize)
	case "s3":
		src, err := NewS3Source(S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return NewCachedSource(src, cfg.CacheSize)
	default:
		return nil, fmt.Errorf("unknown template source %q", cfg.Source)
	}
}

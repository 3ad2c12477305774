package storagefactory

import (
	"context"
	"fmt"

	"aisuite/internal/config"
	"aisuite/internal/pkg/storage"
	"aisuite/internal/pkg/storage/local"
	"aisuite/internal/pkg/storage/oss"
)

// NewStorage 根据配置创建存储实例
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "local":
		if cfg.Local == nil {
			return nil, fmt.Errorf("local storage config is required")
		}
		return local.NewLocalStorage(cfg.Local.BasePath, cfg.Local.BaseURL)
	case "oss":
		if cfg.OSS == nil {
			return nil, fmt.Errorf("OSS storage config is required")
		}
		return oss.NewOSSStorage(oss.Config{
			Endpoint:        cfg.OSS.Endpoint,
			Bucket:          cfg.OSS.Bucket,
			AccessKeyID:     cfg.OSS.AccessKeyID,
			AccessKeySecret: cfg.OSS.AccessKeySecret,
			PublicBaseURL:   cfg.OSS.PublicBaseURL,
			PresignExpiry:   cfg.OSS.PresignExpiry,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

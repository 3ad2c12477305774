package oss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"aisuite/internal/pkg/storage"
)

// OSSStorage 阿里云OSS存储
type OSSStorage struct {
	bucket        *oss.Bucket
	publicURL     string // 公开读地址，为空时使用签名 URL
	presignExpiry time.Duration
}

// Config OSS 存储参数
type Config struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	PublicBaseURL   string // 自定义域名或公开读 bucket 地址
	PresignExpiry   int    // 签名 URL 有效期（秒）
}

// NewOSSStorage 创建阿里云OSS存储
func NewOSSStorage(cfg Config) (*OSSStorage, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	expiry := time.Duration(cfg.PresignExpiry) * time.Second
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &OSSStorage{
		bucket:        bucket,
		publicURL:     strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		presignExpiry: expiry,
	}, nil
}

// Upload 上传文件（服务端上传）
func (s *OSSStorage) Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	cleaned, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}

	if err := s.bucket.PutObject(cleaned, data, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return s.URL(ctx, cleaned)
}

// Download 下载文件
func (s *OSSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		var svcErr oss.ServiceError
		if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	return body, nil
}

// URL 配置了公开地址时直接拼接，否则生成签名下载地址
func (s *OSSStorage) URL(ctx context.Context, key string) (string, error) {
	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}

	url, err := s.bucket.SignURL(key, oss.HTTPGet, int64(s.presignExpiry.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return url, nil
}

// KeyFromURL 支持公开地址和 bucket 默认域名两种形式
func (s *OSSStorage) KeyFromURL(rawURL string) (string, bool) {
	if s.publicURL != "" {
		if key, ok := storage.TrimURLPrefix(rawURL, s.publicURL); ok {
			return key, true
		}
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(s.bucket.Client.Config.Endpoint, "https://"), "http://")
	for _, scheme := range []string{"https://", "http://"} {
		if key, ok := storage.TrimURLPrefix(rawURL, scheme+s.bucket.BucketName+"."+endpoint); ok {
			return key, true
		}
	}
	return "", false
}

// Delete 删除文件
func (s *OSSStorage) Delete(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists 检查文件是否存在
func (s *OSSStorage) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.IsObjectExist(key, oss.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return exists, nil
}

// GetStorageType 获取存储类型
func (s *OSSStorage) GetStorageType() string {
	return string(storage.StorageTypeOSS)
}

package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey 非法的对象 key
var ErrInvalidKey = errors.New("invalid object key")

// Storage 对象存储接口，生成的图片与音频写入这里再通过 URL 访问
type Storage interface {
	// Upload 写入对象并返回访问 URL
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// Download 读取对象，不存在时返回 ErrNotFound
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// URL 获取对象的访问 URL
	URL(ctx context.Context, key string) (string, error)

	// KeyFromURL 由访问 URL 反查对象 key，不属于本存储时返回 false
	KeyFromURL(rawURL string) (string, bool)

	// Delete 删除对象，不存在视为成功
	Delete(ctx context.Context, key string) error

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// GetStorageType 获取存储类型
	GetStorageType() string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)

// CleanKey 规范化 key，拒绝空 key 和越出根目录的路径
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// TrimURLPrefix 去掉 URL 的查询串和指定前缀，得到对象 key
func TrimURLPrefix(rawURL, prefix string) (string, bool) {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key, err := CleanKey(strings.TrimPrefix(rawURL, prefix))
	if err != nil {
		return "", false
	}
	return key, true
}

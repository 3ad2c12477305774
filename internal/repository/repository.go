package repository

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"aisuite/internal/ai"
)

// ErrDuplicate 唯一索引冲突
var ErrDuplicate = errors.New("duplicate record")

// notFound 把 mongo.ErrNoDocuments 转换为 ai.ErrNotFound
func notFound(err error, entity, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", entity, id, ai.ErrNotFound)
	}
	return err
}

// duplicate 把唯一索引冲突转换为 ErrDuplicate
func duplicate(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// Page 分页参数
type Page struct {
	Page     int64
	PageSize int64
}

// Normalize 填充默认值并限制上限
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	return p
}

// Skip 跳过的记录数
func (p Page) Skip() int64 {
	return (p.Page - 1) * p.PageSize
}

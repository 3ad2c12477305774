package assistant

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Assistant 助手人设
// 消息只引用助手，不拥有助手
type Assistant struct {
	ID           string    `bson:"_id" json:"id"`
	WorkspaceID  string    `bson:"workspace_id,omitempty" json:"workspace_id,omitempty"` // 为空表示全局助手
	Name         string    `bson:"name" json:"name"`
	Expertise    string    `bson:"expertise,omitempty" json:"expertise,omitempty"`
	Description  string    `bson:"description,omitempty" json:"description,omitempty"`
	Instructions string    `bson:"instructions,omitempty" json:"instructions,omitempty"` // 系统提示词
	Avatar       string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Status       Status    `bson:"status" json:"status"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Status 助手状态
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// IsActive 是否可用
func (a *Assistant) IsActive() bool {
	return a != nil && a.Status == StatusActive
}

// Collection 集合名称
func (a *Assistant) Collection() string {
	return "assistants"
}

// EnsureIndexes 创建索引
func (a *Assistant) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(a.Collection()).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "workspace_id", Value: 1}, bson.E{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_workspace_status"),
		},
	})
	return err
}

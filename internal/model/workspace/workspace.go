package workspace

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aisuite/internal/ai/cost"
)

// Workspace 工作空间，积分余额的归属方
type Workspace struct {
	ID      string `bson:"_id" json:"id"`
	Name    string `bson:"name" json:"name"`
	OwnerID string `bson:"owner_id" json:"owner_id"`

	// CreditCount 剩余积分，nil 表示不设上限
	CreditCount *cost.Count `bson:"credit_count" json:"credit_count"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsCapped 是否设置了积分上限
func (w *Workspace) IsCapped() bool {
	return w.CreditCount != nil
}

// HasExhaustedCredits 设置了上限且余额 <= 0
func (w *Workspace) HasExhaustedCredits() bool {
	return w.CreditCount != nil && !w.CreditCount.IsPositive()
}

// Collection 集合名称
func (w *Workspace) Collection() string {
	return "workspaces"
}

// EnsureIndexes 创建索引
func (w *Workspace) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(w.Collection()).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "owner_id", Value: 1}},
			Options: options.Index().SetName("idx_owner"),
		},
	})
	return err
}

// CreditUsageEvent 积分消耗事件
type CreditUsageEvent struct {
	WorkspaceID string     `json:"workspace_id"`
	Cost        cost.Count `json:"cost"`
	Source      string     `json:"source"` // message / title / image / speech / transcription / completion
	Model       string     `json:"model"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// CreditUsageEventName 事件名称
const CreditUsageEventName = "workspace.credit_usage"

// Name 事件名称
func (e *CreditUsageEvent) Name() string {
	return CreditUsageEventName
}

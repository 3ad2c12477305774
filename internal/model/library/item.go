package library

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aisuite/internal/ai/cost"
)

// ItemType 生成物类型
type ItemType string

const (
	ItemTypeImage         ItemType = "image"
	ItemTypeSpeech        ItemType = "speech"
	ItemTypeTranscription ItemType = "transcription"
	ItemTypeCompletion    ItemType = "completion"
)

// Item 工作空间内的一次生成结果
type Item struct {
	ID          string         `bson:"_id" json:"id"`
	Type        ItemType       `bson:"type" json:"type"`
	WorkspaceID string         `bson:"workspace_id" json:"workspace_id"`
	UserID      string         `bson:"user_id" json:"user_id"`
	Model       string         `bson:"model" json:"model"`
	Title       string         `bson:"title,omitempty" json:"title,omitempty"`
	Cost        cost.Count     `bson:"cost" json:"cost"`
	Params      map[string]any `bson:"params,omitempty" json:"params,omitempty"` // 规范化后的请求参数
	Output      *Output        `bson:"output,omitempty" json:"output,omitempty"`
	File        *File          `bson:"file,omitempty" json:"file,omitempty"`
	CreatedAt   time.Time      `bson:"created_at" json:"created_at"`
}

// File 存储在 CDN 上的文件
type File struct {
	StorageKey  string `bson:"storage_key" json:"-"`
	StorageType string `bson:"storage_type" json:"-"`
	URL         string `bson:"url" json:"url"`
	ContentType string `bson:"content_type" json:"content_type"`
	Size        int64  `bson:"size" json:"size"`
	Width       int    `bson:"width,omitempty" json:"width,omitempty"`
	Height      int    `bson:"height,omitempty" json:"height,omitempty"`
	BlurHash    string `bson:"blur_hash,omitempty" json:"blur_hash,omitempty"`
}

// Output 文本类结果
type Output struct {
	Text     string    `bson:"text" json:"text"`
	Language string    `bson:"language,omitempty" json:"language,omitempty"`
	Duration float64   `bson:"duration,omitempty" json:"duration,omitempty"`
	Segments []Segment `bson:"segments,omitempty" json:"segments,omitempty"`
}

// Segment 转写的时间段
type Segment struct {
	Start float64 `bson:"start" json:"start"`
	End   float64 `bson:"end" json:"end"`
	Text  string  `bson:"text" json:"text"`
}

// Collection 集合名称
func (i *Item) Collection() string {
	return "library_items"
}

// EnsureIndexes 创建索引
func (i *Item) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(i.Collection()).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "workspace_id", Value: 1}, bson.E{Key: "type", Value: 1}, bson.E{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_workspace_type_created"),
		},
	})
	return err
}

package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aisuite/internal/model/assistant"
)

// AssistantRepo 助手仓库
type AssistantRepo struct {
	collection *mongo.Collection
}

// NewAssistantRepo 创建助手仓库
func NewAssistantRepo(db *mongo.Database) *AssistantRepo {
	return &AssistantRepo{
		collection: db.Collection((&assistant.Assistant{}).Collection()),
	}
}

// Create 创建助手
func (r *AssistantRepo) Create(ctx context.Context, a *assistant.Assistant) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, a)
	return err
}

// FindByID 根据 ID 查询
func (r *AssistantRepo) FindByID(ctx context.Context, id string) (*assistant.Assistant, error) {
	var a assistant.Assistant
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, notFound(err, "assistant", id)
	}
	return &a, nil
}

// FindByIDs 批量查询，返回 ID 到助手的映射，不存在的 ID 被忽略
func (r *AssistantRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*assistant.Assistant, error) {
	out := make(map[string]*assistant.Assistant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var list []*assistant.Assistant
	if err := cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	for _, a := range list {
		out[a.ID] = a
	}
	return out, nil
}

// ListVisible 列出全局助手和工作空间自有助手
func (r *AssistantRepo) ListVisible(ctx context.Context, workspaceID string, activeOnly bool) ([]*assistant.Assistant, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"workspace_id": workspaceID},
		bson.M{"workspace_id": bson.M{"$exists": false}},
		bson.M{"workspace_id": ""},
	}}
	if activeOnly {
		filter["status"] = assistant.StatusActive
	}

	opts := options.Find().SetSort(bson.D{bson.E{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	list := []*assistant.Assistant{}
	if err := cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Update 整体替换可编辑字段
func (r *AssistantRepo) Update(ctx context.Context, a *assistant.Assistant) error {
	a.UpdatedAt = time.Now()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": a.ID}, bson.M{"$set": bson.M{
		"name":         a.Name,
		"expertise":    a.Expertise,
		"description":  a.Description,
		"instructions": a.Instructions,
		"avatar":       a.Avatar,
		"status":       a.Status,
		"updated_at":   a.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "assistant", a.ID)
	}
	return nil
}

// Delete 删除助手，引用它的历史消息保留 assistant_id
func (r *AssistantRepo) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "assistant", id)
	}
	return nil
}

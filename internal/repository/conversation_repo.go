package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/conversation"
)

// ConversationRepo 对话仓库，消息内嵌在对话文档中
type ConversationRepo struct {
	collection *mongo.Collection
}

// NewConversationRepo 创建对话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		collection: db.Collection((&conversation.Conversation{}).Collection()),
	}
}

// Create 创建对话，连同已有消息一起写入
func (r *ConversationRepo) Create(ctx context.Context, conv *conversation.Conversation) error {
	if conv.Messages == nil {
		conv.Messages = []*conversation.Message{}
	}
	_, err := r.collection.InsertOne(ctx, conv)
	return err
}

// FindByID 根据 ID 查询，消息的 Parent 需要调用方 Link
func (r *ConversationRepo) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		return nil, notFound(err, "conversation", id)
	}
	return &conv, nil
}

// AppendMessages 追加消息并累加对话费用
func (r *ConversationRepo) AppendMessages(ctx context.Context, id string, msgs ...*conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	total := cost.Zero
	for _, m := range msgs {
		total = total.Add(m.Cost)
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"messages": bson.M{"$each": msgs}},
		"$inc":  bson.M{"cost": total},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "conversation", id)
	}
	return nil
}

// UpdateTitle 更新标题，标题费用只计入工作空间
func (r *ConversationRepo) UpdateTitle(ctx context.Context, id, title string) error {
	update := bson.M{"$set": bson.M{"title": title, "updated_at": time.Now()}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "conversation", id)
	}
	return nil
}

// ListByUser 按更新时间倒序列出用户在工作空间内的对话，不返回消息
func (r *ConversationRepo) ListByUser(ctx context.Context, workspaceID, userID string, page Page) ([]*conversation.Conversation, int64, error) {
	page = page.Normalize()
	filter := bson.M{"workspace_id": workspaceID, "user_id": userID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetProjection(bson.M{"messages": 0}).
		SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.PageSize)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	convs := []*conversation.Conversation{}
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

// Delete 删除对话
func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "conversation", id)
	}
	return nil
}

package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aisuite/internal/model/library"
)

// LibraryRepo 生成物仓库
type LibraryRepo struct {
	collection *mongo.Collection
}

// NewLibraryRepo 创建生成物仓库
func NewLibraryRepo(db *mongo.Database) *LibraryRepo {
	return &LibraryRepo{
		collection: db.Collection((&library.Item{}).Collection()),
	}
}

// Create 写入生成物
func (r *LibraryRepo) Create(ctx context.Context, item *library.Item) error {
	_, err := r.collection.InsertOne(ctx, item)
	return err
}

// FindByID 根据 ID 查询
func (r *LibraryRepo) FindByID(ctx context.Context, id string) (*library.Item, error) {
	var item library.Item
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return nil, notFound(err, "library item", id)
	}
	return &item, nil
}

// ListByUser 按创建时间倒序列出，itemType 为空时不过滤类型
func (r *LibraryRepo) ListByUser(ctx context.Context, workspaceID, userID string, itemType library.ItemType, page Page) ([]*library.Item, int64, error) {
	page = page.Normalize()
	filter := bson.M{"workspace_id": workspaceID, "user_id": userID}
	if itemType != "" {
		filter["type"] = itemType
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.PageSize)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	items := []*library.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Delete 删除生成物
func (r *LibraryRepo) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "library item", id)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/workspace"
	"aisuite/internal/pkg/cache"
)

const (
	workspaceCacheKeyPrefix = "ws:"
	workspaceCacheTTL       = 30 * time.Second
)

// WorkspaceRepo 工作空间仓库
type WorkspaceRepo struct {
	collection *mongo.Collection
	cache      *cache.RedisCache // 可为空
}

// NewWorkspaceRepo 创建工作空间仓库，c 为空时不缓存
func NewWorkspaceRepo(db *mongo.Database, c *cache.RedisCache) *WorkspaceRepo {
	return &WorkspaceRepo{
		collection: db.Collection((&workspace.Workspace{}).Collection()),
		cache:      c,
	}
}

// Create 创建工作空间
func (r *WorkspaceRepo) Create(ctx context.Context, ws *workspace.Workspace) error {
	now := time.Now()
	ws.CreatedAt = now
	ws.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, ws)
	return duplicate(err)
}

// FindByID 根据 ID 查询，优先读缓存
func (r *WorkspaceRepo) FindByID(ctx context.Context, id string) (*workspace.Workspace, error) {
	if r.cache != nil {
		var cached workspace.Workspace
		if err := r.cache.Get(ctx, workspaceCacheKeyPrefix+id, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("workspace_id", id).Msg("workspace cache read failed")
		}
	}

	var ws workspace.Workspace
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ws); err != nil {
		return nil, notFound(err, "workspace", id)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, workspaceCacheKeyPrefix+id, &ws, workspaceCacheTTL); err != nil {
			log.Warn().Err(err).Str("workspace_id", id).Msg("workspace cache write failed")
		}
	}
	return &ws, nil
}

// DeductCredit 原子扣减积分，结果不低于 0
// 未设上限的工作空间不做任何修改，返回 nil
func (r *WorkspaceRepo) DeductCredit(ctx context.Context, id string, amount cost.Count) (*workspace.Workspace, error) {
	if !amount.IsPositive() {
		return nil, nil
	}

	filter := bson.M{"_id": id, "credit_count": bson.M{"$ne": nil}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "credit_count", Value: bson.D{{Key: "$max", Value: bson.A{
				primitive.NewDecimal128(0, 0),
				bson.D{{Key: "$subtract", Value: bson.A{"$credit_count", amount}}},
			}}}},
			{Key: "updated_at", Value: time.Now()},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ws workspace.Workspace
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ws)
	r.invalidate(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// SetCredits 设置积分余额，nil 表示取消上限
func (r *WorkspaceRepo) SetCredits(ctx context.Context, id string, credits *cost.Count) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"credit_count": credits, "updated_at": time.Now()},
	})
	r.invalidate(ctx, id)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "workspace", id)
	}
	return nil
}

// Ping 健康检查
func (r *WorkspaceRepo) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}

func (r *WorkspaceRepo) invalidate(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, workspaceCacheKeyPrefix+id); err != nil {
		log.Warn().Err(err).Str("workspace_id", id).Msg("workspace cache invalidate failed")
	}
}

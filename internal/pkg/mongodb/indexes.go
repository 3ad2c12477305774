package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"aisuite/internal/model/assistant"
	"aisuite/internal/model/conversation"
	"aisuite/internal/model/library"
	"aisuite/internal/model/user"
	"aisuite/internal/model/workspace"
)

// EnsureIndexes 应用启动时为所有模型创建索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return EnsureAllIndexes(ctx, db,
		&user.User{},
		&workspace.Workspace{},
		&assistant.Assistant{},
		&conversation.Conversation{},
		&library.Item{},
	)
}

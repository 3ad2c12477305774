package service

import (
	"context"
	"time"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/assistant"
	"aisuite/internal/model/conversation"
	"aisuite/internal/model/library"
	"aisuite/internal/model/user"
	"aisuite/internal/model/workspace"
	"aisuite/internal/pkg/events"
	"aisuite/internal/repository"
)

// 服务层依赖的存储接口，由 repository 包实现

// WorkspaceStore 工作空间存储
type WorkspaceStore interface {
	Create(ctx context.Context, ws *workspace.Workspace) error
	FindByID(ctx context.Context, id string) (*workspace.Workspace, error)
	DeductCredit(ctx context.Context, id string, amount cost.Count) (*workspace.Workspace, error)
	SetCredits(ctx context.Context, id string, credits *cost.Count) error
}

// UserStore 用户存储
type UserStore interface {
	Create(ctx context.Context, u *user.User) error
	FindByID(ctx context.Context, id string) (*user.User, error)
	FindByUsername(ctx context.Context, username string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateLastLoginAt(ctx context.Context, id string) error
}

// ConversationStore 对话存储
type ConversationStore interface {
	Create(ctx context.Context, conv *conversation.Conversation) error
	FindByID(ctx context.Context, id string) (*conversation.Conversation, error)
	AppendMessages(ctx context.Context, id string, msgs ...*conversation.Message) error
	UpdateTitle(ctx context.Context, id, title string) error
	ListByUser(ctx context.Context, workspaceID, userID string, page repository.Page) ([]*conversation.Conversation, int64, error)
	Delete(ctx context.Context, id string) error
}

// AssistantStore 助手存储
type AssistantStore interface {
	Create(ctx context.Context, a *assistant.Assistant) error
	FindByID(ctx context.Context, id string) (*assistant.Assistant, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*assistant.Assistant, error)
	ListVisible(ctx context.Context, workspaceID string, activeOnly bool) ([]*assistant.Assistant, error)
	Update(ctx context.Context, a *assistant.Assistant) error
	Delete(ctx context.Context, id string) error
}

// LibraryStore 生成物存储
type LibraryStore interface {
	Create(ctx context.Context, item *library.Item) error
	FindByID(ctx context.Context, id string) (*library.Item, error)
	ListByUser(ctx context.Context, workspaceID, userID string, itemType library.ItemType, page repository.Page) ([]*library.Item, int64, error)
	Delete(ctx context.Context, id string) error
}

// EventDispatcher 事件分发
type EventDispatcher interface {
	Dispatch(ctx context.Context, e events.Event)
}

// Cache 键值缓存，未命中返回 cache.ErrMiss
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

var (
	_ WorkspaceStore    = (*repository.WorkspaceRepo)(nil)
	_ UserStore         = (*repository.UserRepo)(nil)
	_ ConversationStore = (*repository.ConversationRepo)(nil)
	_ AssistantStore    = (*repository.AssistantRepo)(nil)
	_ LibraryStore      = (*repository.LibraryRepo)(nil)
	_ EventDispatcher   = (*events.Dispatcher)(nil)
)

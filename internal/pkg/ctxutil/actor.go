package ctxutil

import "context"

type userIDKeyType struct{}

type workspaceIDKeyType struct{}

var (
	userIDKey      = userIDKeyType{}
	workspaceIDKey = workspaceIDKeyType{}
)

// WithActor 认证中间件解析 JWT 后写入用户与工作空间
func WithActor(ctx context.Context, userID, workspaceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, workspaceIDKey, workspaceID)
}

// GetUserID 从 context 中解析 userID
func GetUserID(ctx context.Context) (string, bool) {
	return stringValue(ctx, userIDKey)
}

// GetWorkspaceID 从 context 中解析 workspaceID
func GetWorkspaceID(ctx context.Context) (string, bool) {
	return stringValue(ctx, workspaceIDKey)
}

func stringValue(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

package service

import (
	"context"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/workspace"
)

// WorkspaceService 工作空间查询与积分调整
type WorkspaceService struct {
	workspaces WorkspaceStore
}

// NewWorkspaceService 创建工作空间服务
func NewWorkspaceService(workspaces WorkspaceStore) *WorkspaceService {
	return &WorkspaceService{workspaces: workspaces}
}

// Get 获取工作空间
func (s *WorkspaceService) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	return s.workspaces.FindByID(ctx, id)
}

// SetCredits 设置积分余额，credits 为 nil 表示不设上限
func (s *WorkspaceService) SetCredits(ctx context.Context, id string, credits *cost.Count) (*workspace.Workspace, error) {
	if _, err := s.workspaces.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.workspaces.SetCredits(ctx, id, credits); err != nil {
		return nil, err
	}
	return s.workspaces.FindByID(ctx, id)
}

package service

import (
	"context"
	"fmt"
	"strings"

	"aisuite/internal/ai"
	"aisuite/internal/model/assistant"
	"aisuite/internal/pkg/id"
)

// AssistantService 助手人设管理
type AssistantService struct {
	assistants AssistantStore
}

// NewAssistantService 创建助手服务
func NewAssistantService(assistants AssistantStore) *AssistantService {
	return &AssistantService{assistants: assistants}
}

// AssistantInput 创建或更新助手的参数
type AssistantInput struct {
	Name         string
	Expertise    string
	Description  string
	Instructions string
	Avatar       string
	Status       assistant.Status
}

// Create 在工作空间内创建助手
func (s *AssistantService) Create(ctx context.Context, workspaceID string, in AssistantInput) (*assistant.Assistant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ai.NewDomainError("name is required", ai.ErrInvalidParameters)
	}

	status := in.Status
	if status == "" {
		status = assistant.StatusActive
	}
	if status != assistant.StatusActive && status != assistant.StatusInactive {
		return nil, ai.NewDomainError("invalid status", ai.ErrInvalidParameters)
	}

	a := &assistant.Assistant{
		ID:           id.New(),
		WorkspaceID:  workspaceID,
		Name:         name,
		Expertise:    in.Expertise,
		Description:  in.Description,
		Instructions: in.Instructions,
		Avatar:       in.Avatar,
		Status:       status,
	}
	if err := s.assistants.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	return a, nil
}

// List 列出全局助手和工作空间自有助手
func (s *AssistantService) List(ctx context.Context, workspaceID string, activeOnly bool) ([]*assistant.Assistant, error) {
	return s.assistants.ListVisible(ctx, workspaceID, activeOnly)
}

// Get 获取对工作空间可见的助手
func (s *AssistantService) Get(ctx context.Context, workspaceID, assistantID string) (*assistant.Assistant, error) {
	a, err := s.assistants.FindByID(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	if a.WorkspaceID != "" && a.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("%w: assistant %s", ai.ErrNotFound, assistantID)
	}
	return a, nil
}

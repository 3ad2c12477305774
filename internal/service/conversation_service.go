package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
	"aisuite/internal/model/conversation"
	"aisuite/internal/repository"
)

// ConversationService 对话管理与标题生成
type ConversationService struct {
	conversations ConversationStore
	assistants    AssistantStore
	factory       *ai.Factory
	billing       *Billing
	titleModel    ai.Model
}

// NewConversationService 创建对话服务，titleModel 为未指定模型时的标题生成模型
func NewConversationService(
	conversations ConversationStore,
	assistants AssistantStore,
	factory *ai.Factory,
	billing *Billing,
	titleModel ai.Model,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		assistants:    assistants,
		factory:       factory,
		billing:       billing,
		titleModel:    titleModel,
	}
}

// Create 创建空对话
func (s *ConversationService) Create(ctx context.Context, actor Actor, title string) (*conversation.Conversation, error) {
	conv := conversation.New(actor.WorkspaceID, actor.UserID)
	if title = strings.TrimSpace(title); title != "" {
		conv.SetTitle(title)
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// List 分页列出当前用户的对话，不含消息
func (s *ConversationService) List(ctx context.Context, actor Actor, page repository.Page) ([]*conversation.Conversation, int64, error) {
	return s.conversations.ListByUser(ctx, actor.WorkspaceID, actor.UserID, page)
}

// Get 获取对话并恢复消息树
func (s *ConversationService) Get(ctx context.Context, actor Actor, id string) (*conversation.Conversation, error) {
	conv, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	assistants, err := s.assistants.FindByIDs(ctx, conv.AssistantIDs())
	if err != nil {
		return nil, err
	}
	conv.Link(assistants)
	return conv, nil
}

// Delete 删除对话
func (s *ConversationService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	return s.conversations.Delete(ctx, id)
}

// TitleResult 标题生成结果
type TitleResult struct {
	Title string     `json:"title"`
	Cost  cost.Count `json:"cost"`
}

// GenerateTitle 以第一条用户消息生成标题，保存并扣费
func (s *ConversationService) GenerateTitle(ctx context.Context, actor Actor, id string, model ai.Model) (*TitleResult, error) {
	if model == "" {
		model = s.titleModel
	}

	if _, err := s.billing.Authorize(ctx, actor.WorkspaceID); err != nil {
		return nil, err
	}

	conv, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	svc, err := s.factory.TitleService(model)
	if err != nil {
		return nil, err
	}

	var content string
	if first := conv.FirstUserMessage(); first != nil {
		content = first.Content
	}

	res, err := svc.GenerateTitle(ctx, content, model)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", id).Str("model", model.String()).Msg("title generation failed")
		return nil, err
	}

	title := conversation.TruncateTitle(res.Title)
	if err := s.conversations.UpdateTitle(ctx, id, title); err != nil {
		return nil, fmt.Errorf("update title: %w", err)
	}
	s.billing.Charge(context.WithoutCancel(ctx), actor.WorkspaceID, res.Cost, SourceTitle, model)

	return &TitleResult{Title: title, Cost: res.Cost}, nil
}

func (s *ConversationService) owned(ctx context.Context, actor Actor, id string) (*conversation.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.WorkspaceID != actor.WorkspaceID || conv.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: conversation %s", ai.ErrNotFound, id)
	}
	return conv, nil
}

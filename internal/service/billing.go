package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
	"aisuite/internal/model/workspace"
)

// 积分消耗来源
const (
	SourceMessage        = "message"
	SourceTitle          = "title"
	SourceCompletion     = "completion"
	SourceImage          = "image"
	SourceSpeech         = "speech"
	SourceTranscription  = "transcription"
	SourceCodeCompletion = "code_completion"
)

// Billing 积分校验与扣减
type Billing struct {
	workspaces WorkspaceStore
	dispatcher EventDispatcher
}

// NewBilling 创建积分服务
func NewBilling(workspaces WorkspaceStore, dispatcher EventDispatcher) *Billing {
	return &Billing{workspaces: workspaces, dispatcher: dispatcher}
}

// Authorize 加载工作空间并检查余额，已耗尽时返回 ErrInsufficientCredits
func (b *Billing) Authorize(ctx context.Context, workspaceID string) (*workspace.Workspace, error) {
	ws, err := b.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws.HasExhaustedCredits() {
		return nil, ai.ErrInsufficientCredits
	}
	return ws, nil
}

// Charge 原子扣减积分并发出消耗事件
// 扣减失败只记录日志，生成结果已经产生，不回滚
func (b *Billing) Charge(ctx context.Context, workspaceID string, amount cost.Count, source string, model ai.Model) {
	logger := log.With().
		Str("workspace_id", workspaceID).
		Str("source", source).
		Str("model", model.String()).
		Str("cost", amount.String()).
		Logger()

	if _, err := b.workspaces.DeductCredit(ctx, workspaceID, amount); err != nil {
		logger.Error().Err(err).Msg("failed to deduct workspace credit")
		return
	}

	b.dispatcher.Dispatch(ctx, &workspace.CreditUsageEvent{
		WorkspaceID: workspaceID,
		Cost:        amount,
		Source:      source,
		Model:       model.String(),
		OccurredAt:  time.Now(),
	})
	logger.Debug().Msg("credit charged")
}

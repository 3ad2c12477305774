package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"aisuite/internal/ai"
	"aisuite/internal/model/assistant"
	"aisuite/internal/model/conversation"
	"aisuite/internal/model/user"
)

// EventType 输出给 SSE 的事件类型
type EventType string

const (
	EventToken   EventType = "token"
	EventMessage EventType = "message"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Event 一次生成过程中按顺序输出的事件
// token 与 error 的 Data 为字符串，message 为 *MessageResource
type Event struct {
	Type EventType
	Data any
}

// EmitFunc 事件输出，返回错误表示客户端已断开
type EmitFunc func(Event) error

// ImageUploader 保存消息附图
type ImageUploader interface {
	UploadMessageImage(ctx context.Context, data []byte) (*conversation.ImageFile, error)
}

// errClientGone 事件无法再写给客户端
var errClientGone = errors.New("client connection closed")

// generationState 生成过程的状态
type generationState string

const (
	stateValidating      generationState = "validating"
	stateContextResolved generationState = "context_resolved"
	stateStreaming       generationState = "streaming"
	stateFinalizing      generationState = "finalizing"
	stateDone            generationState = "done"
	stateFailed          generationState = "failed"
)

// GenerateMessageInput 生成消息的参数
// Prompt 与 ParentID 至少提供一个：有 Prompt 时新建用户消息并挂在 ParentID 下，
// 只有 ParentID 时基于该消息重新生成回复
type GenerateMessageInput struct {
	Actor
	ConversationID string
	Model          ai.Model
	Prompt         string
	ParentID       string
	AssistantID    string
	Quote          string
	Image          []byte
}

// MessageService 对话消息生成编排
type MessageService struct {
	factory       *ai.Factory
	billing       *Billing
	users         UserStore
	conversations ConversationStore
	assistants    AssistantStore
	images        ImageUploader
}

// NewMessageService 创建消息生成服务
func NewMessageService(
	factory *ai.Factory,
	billing *Billing,
	users UserStore,
	conversations ConversationStore,
	assistants AssistantStore,
	images ImageUploader,
) *MessageService {
	return &MessageService{
		factory:       factory,
		billing:       billing,
		users:         users,
		conversations: conversations,
		assistants:    assistants,
		images:        images,
	}
}

// generation 单次生成的上下文
type generation struct {
	in     GenerateMessageInput
	logger zerolog.Logger
	state  generationState

	user      *user.User
	conv      *conversation.Conversation
	service   ai.MessageService
	assistant *assistant.Assistant
	source    *conversation.Message
}

func (g *generation) transition(to generationState) {
	g.logger.Debug().Str("from", string(g.state)).Str("to", string(to)).Msg("generation state changed")
	g.state = to
}

// Generate 生成一条助手回复
// 进入流式阶段前的失败直接返回，不输出任何事件；
// 流式阶段的失败输出 error 事件后同样返回该错误；
// ctx 取消后不再输出事件，也不保存回复、不扣积分
func (s *MessageService) Generate(ctx context.Context, in GenerateMessageInput, emit EmitFunc) error {
	g := &generation{
		in:    in,
		state: stateValidating,
		logger: log.With().
			Str("workspace_id", in.WorkspaceID).
			Str("conversation_id", in.ConversationID).
			Str("model", in.Model.String()).
			Logger(),
	}

	if err := s.validate(ctx, g); err != nil {
		g.transition(stateFailed)
		return err
	}
	g.transition(stateContextResolved)

	if err := s.resolveSource(ctx, g, emit); err != nil {
		g.transition(stateFailed)
		return err
	}

	g.transition(stateStreaming)
	content, result, err := s.stream(ctx, g, emit)
	if err != nil {
		g.transition(stateFailed)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errClientGone) {
			return err
		}
		g.logger.Error().Err(err).Msg("message generation failed")
		return s.fail(err, emit)
	}

	g.transition(stateFinalizing)
	// 流已完整结束，之后的保存与扣费不受客户端断开影响
	finalCtx := context.WithoutCancel(ctx)
	reply := g.conv.NewAssistantMessage(content, g.source, result.Cost, in.Model.String(), g.assistant)
	if err := s.conversations.AppendMessages(finalCtx, g.conv.ID, reply); err != nil {
		g.transition(stateFailed)
		g.logger.Error().Err(err).Msg("failed to save assistant message")
		return s.fail(fmt.Errorf("save assistant message: %w", err), emit)
	}
	s.billing.Charge(finalCtx, in.WorkspaceID, result.Cost, SourceMessage, in.Model)

	g.transition(stateDone)
	g.logger.Info().
		Int("input_tokens", result.Usage.InputTokens).
		Int("output_tokens", result.Usage.OutputTokens).
		Str("cost", result.Cost.String()).
		Msg("message generated")

	if ctx.Err() != nil {
		return nil
	}
	return emit(Event{Type: EventMessage, Data: NewMessageResource(reply, g.user)})
}

// validate 加载实体、解析适配器并检查积分，全部发生在调用厂商之前
func (s *MessageService) validate(ctx context.Context, g *generation) error {
	in := g.in
	if strings.TrimSpace(in.Prompt) == "" && in.ParentID == "" {
		return ai.ErrPromptOrParentRequired
	}

	if _, err := s.billing.Authorize(ctx, in.WorkspaceID); err != nil {
		return err
	}

	u, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	g.user = u

	conv, err := s.conversations.FindByID(ctx, in.ConversationID)
	if err != nil {
		return err
	}
	if conv.WorkspaceID != in.WorkspaceID || conv.UserID != in.UserID {
		return fmt.Errorf("%w: conversation %s", ai.ErrNotFound, in.ConversationID)
	}
	assistants, err := s.assistants.FindByIDs(ctx, conv.AssistantIDs())
	if err != nil {
		return err
	}
	conv.Link(assistants)
	g.conv = conv

	svc, err := s.factory.MessageService(in.Model)
	if err != nil {
		return err
	}
	g.service = svc
	return nil
}

// resolveSource 确定作为上下文叶子的消息，有 prompt 时新建并输出用户消息
func (s *MessageService) resolveSource(ctx context.Context, g *generation, emit EmitFunc) error {
	in := g.in

	var parent *conversation.Message
	if in.ParentID != "" {
		p, err := g.conv.FindMessage(in.ParentID)
		if err != nil {
			return fmt.Errorf("%w: message %s", ai.ErrNotFound, in.ParentID)
		}
		parent = p
	}

	if in.AssistantID != "" {
		a, err := s.assistants.FindByID(ctx, in.AssistantID)
		if err != nil {
			return err
		}
		if a.IsActive() {
			g.assistant = a
		} else {
			g.logger.Debug().Str("assistant_id", a.ID).Msg("inactive assistant ignored")
		}
	}

	// 重新生成时沿用 parent 的助手，上下文指令也来自 parent
	if strings.TrimSpace(in.Prompt) == "" {
		if g.assistant != nil && (parent.Assistant == nil || g.assistant.ID != parent.Assistant.ID) {
			g.logger.Debug().Str("assistant_id", g.assistant.ID).Msg("assistant_id ignored on regenerate")
		}
		g.source = parent
		g.assistant = nil
		if parent.Assistant.IsActive() {
			g.assistant = parent.Assistant
		}
		return nil
	}

	image, err := s.attachImage(ctx, g)
	if err != nil {
		return err
	}

	msg := g.conv.NewUserMessage(conversation.UserMessageInput{
		Content:   in.Prompt,
		UserID:    in.UserID,
		Model:     in.Model.String(),
		Parent:    parent,
		Assistant: g.assistant,
		Quote:     in.Quote,
		Image:     image,
	})
	if err := s.conversations.AppendMessages(ctx, g.conv.ID, msg); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	g.source = msg

	return emit(Event{Type: EventMessage, Data: NewMessageResource(msg, g.user)})
}

// attachImage 保存上传的图片；图片无法解码属于调用方错误，写入失败则放弃附图继续生成
func (s *MessageService) attachImage(ctx context.Context, g *generation) (*conversation.ImageFile, error) {
	if len(g.in.Image) == 0 || s.images == nil {
		return nil, nil
	}

	image, err := s.images.UploadMessageImage(ctx, g.in.Image)
	if err != nil {
		if errors.Is(err, ai.ErrInvalidParameters) {
			return nil, err
		}
		g.logger.Warn().Err(err).Msg("failed to store message image, continuing without it")
		return nil, nil
	}
	return image, nil
}

// stream 逐个转发 token，返回完整文本与最终结果
func (s *MessageService) stream(ctx context.Context, g *generation, emit EmitFunc) (string, ai.Result, error) {
	// 空 token 作为助手消息的占位
	if err := emit(Event{Type: EventToken, Data: ""}); err != nil {
		return "", ai.Result{}, fmt.Errorf("%w: %v", errClientGone, err)
	}

	stream, err := g.service.GenerateMessage(ctx, g.in.Model, g.source)
	if err != nil {
		return "", ai.Result{}, err
	}
	return relay(ctx, stream, emit)
}

// fail 输出 error 事件并返回原始错误
func (s *MessageService) fail(err error, emit EmitFunc) error {
	_ = emit(Event{Type: EventError, Data: err.Error()})
	return err
}

// relay 把流中的 token 依次输出，客户端断开时立即关闭上游
func relay(ctx context.Context, stream *ai.Stream, emit EmitFunc) (string, ai.Result, error) {
	var content strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			_ = stream.Close()
			return "", ai.Result{}, err
		}

		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", ai.Result{}, err
		}

		content.WriteString(tok.Content)
		if err := emit(Event{Type: EventToken, Data: tok.Content}); err != nil {
			_ = stream.Close()
			return "", ai.Result{}, fmt.Errorf("%w: %v", errClientGone, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return "", ai.Result{}, err
	}
	res, err := stream.Result()
	if err != nil {
		return "", ai.Result{}, err
	}
	return content.String(), res, nil
}

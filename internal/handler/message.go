package handler

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"aisuite/internal/ai"
	"aisuite/internal/service"
)

// GenerateMessageRequest 生成消息请求
// prompt 与 parent_id 至少提供一个
type GenerateMessageRequest struct {
	Model       string `json:"model" binding:"required"` // 模型
	Prompt      string `json:"prompt"`                   // 用户输入
	ParentID    string `json:"parent_id"`                // 父消息ID
	AssistantID string `json:"assistant_id"`             // 助手ID，只提供 parent_id 时沿用父消息的助手
	Quote       string `json:"quote"`                    // 引用的文本
	Image       string `json:"image"`                    // base64 图片，可带 data URL 前缀
}

// decodeImage 解析 base64 图片
func decodeImage(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "data:") {
		_, payload, found := strings.Cut(raw, ",")
		if !found {
			return nil, fmt.Errorf("invalid data url")
		}
		raw = payload
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid image encoding: %w", err)
	}
	return data, nil
}

// GenerateMessage 生成消息（SSE）
// @Summary      生成消息
// @Description  以 SSE 输出：用户消息（message）、token、助手消息（message）；流开始后的错误以 error 事件返回
// @Tags         对话
// @Accept       json
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        id       path      string                  true  "对话ID"
// @Param        request  body      GenerateMessageRequest  true  "生成消息请求"
// @Success      200      {string}  string  "event stream"
// @Failure      400      {object}  ErrorResponse
// @Failure      402      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/conversations/{id}/messages [post]
func (h *ConversationHandler) GenerateMessage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req GenerateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		badBody(c, err)
		return
	}

	streamer := NewEventStreamer(c)
	err = h.messages.Generate(c.Request.Context(), service.GenerateMessageInput{
		Actor:          actor,
		ConversationID: c.Param("id"),
		Model:          ai.Model(req.Model),
		Prompt:         req.Prompt,
		ParentID:       req.ParentID,
		AssistantID:    req.AssistantID,
		Quote:          req.Quote,
		Image:          image,
	}, streamer.Emit)
	streamer.finish(err)
}

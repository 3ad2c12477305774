package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
	"aisuite/internal/model/conversation"
	"aisuite/internal/service"
)

// ConversationHandler 对话管理处理器
type ConversationHandler struct {
	conversations *service.ConversationService
	messages      *service.MessageService
}

// NewConversationHandler 创建对话管理处理器
func NewConversationHandler(conversations *service.ConversationService, messages *service.MessageService) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
	}
}

// CreateConversationRequest 创建对话请求
type CreateConversationRequest struct {
	Title string `json:"title"` // 标题（可选）
}

// ConversationResponse 对话详情
type ConversationResponse struct {
	ID        string                     `json:"id"`
	Title     string                     `json:"title"`
	Cost      cost.Count                 `json:"cost"`
	Messages  []*service.MessageResource `json:"messages,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

func toConversationResponse(conv *conversation.Conversation, withMessages bool) *ConversationResponse {
	resp := &ConversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		Cost:      conv.Cost,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if withMessages {
		resp.Messages = make([]*service.MessageResource, 0, len(conv.Messages))
		for _, msg := range conv.Messages {
			resp.Messages = append(resp.Messages, service.NewMessageResource(msg, nil))
		}
	}
	return resp
}

// Create 创建对话
// @Summary      创建对话
// @Tags         对话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateConversationRequest  false  "创建对话请求"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, err)
			return
		}
	}

	conv, err := h.conversations.Create(c.Request.Context(), actor, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusCreated, toConversationResponse(conv, false))
}

// List 获取对话列表
// @Summary      对话列表
// @Tags         对话
// @Produce      json
// @Security     BearerAuth
// @Param        page       query     int  false  "页码"
// @Param        page_size  query     int  false  "每页数量"
// @Success      200        {object}  map[string]interface{}
// @Router       /api/v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	page := pageFrom(c)
	convs, total, err := h.conversations.List(c.Request.Context(), actor, page)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]*ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		items = append(items, toConversationResponse(conv, false))
	}
	okResponse(c, http.StatusOK, pageData(items, total, page))
}

// Get 获取对话详情
// @Summary      对话详情
// @Description  返回对话与全部消息
// @Tags         对话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "对话ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	conv, err := h.conversations.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusOK, toConversationResponse(conv, true))
}

// Delete 删除对话
// @Summary      删除对话
// @Tags         对话
// @Security     BearerAuth
// @Param        id   path  string  true  "对话ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/conversations/{id} [delete]
func (h *ConversationHandler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.conversations.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateTitleRequest 生成标题请求
type GenerateTitleRequest struct {
	Model string `json:"model"` // 为空时使用默认标题模型
}

// GenerateTitle 生成对话标题
// @Summary      生成对话标题
// @Description  以第一条用户消息生成标题并扣除积分
// @Tags         对话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                true   "对话ID"
// @Param        request  body      GenerateTitleRequest  false  "生成标题请求"
// @Success      200      {object}  map[string]interface{}
// @Failure      402      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/conversations/{id}/title [post]
func (h *ConversationHandler) GenerateTitle(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req GenerateTitleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, err)
			return
		}
	}

	res, err := h.conversations.GenerateTitle(c.Request.Context(), actor, c.Param("id"), ai.Model(req.Model))
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusOK, res)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aisuite/internal/model/assistant"
	"aisuite/internal/service"
)

// AssistantHandler 助手管理处理器
type AssistantHandler struct {
	assistants *service.AssistantService
}

// NewAssistantHandler 创建助手管理处理器
func NewAssistantHandler(assistants *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistants: assistants}
}

// CreateAssistantRequest 创建助手请求
type CreateAssistantRequest struct {
	Name         string `json:"name" binding:"required,max=100"` // 名称
	Expertise    string `json:"expertise"`                       // 擅长领域
	Description  string `json:"description"`                     // 简介
	Instructions string `json:"instructions"`                    // 系统提示词
	Avatar       string `json:"avatar"`                          // 头像URL
	Status       string `json:"status" binding:"omitempty,oneof=active inactive"`
}

// Create 创建助手
// @Summary      创建助手
// @Tags         助手
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateAssistantRequest  true  "创建助手请求"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/assistants [post]
func (h *AssistantHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req CreateAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	a, err := h.assistants.Create(c.Request.Context(), actor.WorkspaceID, service.AssistantInput{
		Name:         req.Name,
		Expertise:    req.Expertise,
		Description:  req.Description,
		Instructions: req.Instructions,
		Avatar:       req.Avatar,
		Status:       assistant.Status(req.Status),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusCreated, a)
}

// List 助手列表
// @Summary      助手列表
// @Description  返回全局助手与当前工作空间的助手
// @Tags         助手
// @Produce      json
// @Security     BearerAuth
// @Param        active  query     bool  false  "只返回启用的助手"
// @Success      200     {object}  map[string]interface{}
// @Router       /api/v1/assistants [get]
func (h *AssistantHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	list, err := h.assistants.List(c.Request.Context(), actor.WorkspaceID, c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusOK, list)
}

// Get 助手详情
// @Summary      助手详情
// @Tags         助手
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "助手ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/assistants/{id} [get]
func (h *AssistantHandler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	a, err := h.assistants.Get(c.Request.Context(), actor.WorkspaceID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusOK, a)
}

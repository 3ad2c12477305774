package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aisuite/internal/service"
)

// WorkspaceHandler 工作空间处理器
type WorkspaceHandler struct {
	workspaces *service.WorkspaceService
}

// NewWorkspaceHandler 创建工作空间处理器
func NewWorkspaceHandler(workspaces *service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces}
}

// Current 当前工作空间
// @Summary      当前工作空间
// @Description  返回当前工作空间及积分余额，credit_count 为 null 表示不限额
// @Tags         工作空间
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/workspace [get]
func (h *WorkspaceHandler) Current(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	ws, err := h.workspaces.Get(c.Request.Context(), actor.WorkspaceID)
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusOK, ws)
}

package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "aisuite/internal/pkg/http"
	"aisuite/internal/service"
)

// RegisterRequest 用户注册请求
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=50"` // 用户名（必填，3-50字符）
	Email     string `json:"email" binding:"required,email"`           // 邮箱（必填，需符合邮箱格式）
	Password  string `json:"password" binding:"required,min=6"`        // 密码（必填，至少6位）
	FirstName string `json:"first_name,omitempty"`                     // 名（可选）
	LastName  string `json:"last_name,omitempty"`                      // 姓（可选）
}

// RegisterResponseData 注册响应数据
type RegisterResponseData struct {
	User        UserInfo `json:"user"`                   // 用户信息
	WorkspaceID string   `json:"workspace_id"`           // 个人工作空间ID
	CreditCount *string  `json:"credit_count,omitempty"` // 初始积分，为空表示不设上限
}

// Register 用户注册
// @Summary      用户注册
// @Description  注册新用户，同时创建个人工作空间并发放初始积分
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request  body      RegisterRequest  true  "注册请求"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Router       /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeBadBody, "Invalid request body", err.Error()))
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		code := http.StatusInternalServerError
		errorCode := httputil.CodeInternal

		switch {
		case errors.Is(err, service.ErrUserAlreadyExists), errors.Is(err, service.ErrEmailTaken):
			code = http.StatusConflict
			errorCode = httputil.CodeConflict
		}

		c.JSON(code, httputil.NewErrorResponse(errorCode, err.Error()))
		return
	}

	data := RegisterResponseData{
		User:        toUserInfo(resp.User),
		WorkspaceID: resp.Workspace.ID,
	}
	if resp.Workspace.CreditCount != nil {
		credits := resp.Workspace.CreditCount.String()
		data.CreditCount = &credits
	}

	c.JSON(http.StatusCreated, httputil.NewSuccessResponse("注册成功", data))
}

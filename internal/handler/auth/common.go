package auth

import (
	"time"

	"aisuite/internal/model/user"
	httputil "aisuite/internal/pkg/http"
)

// ErrorResponse 错误响应（所有API共用）
type ErrorResponse = httputil.ErrorResponse

// UserInfo 用户信息（用于响应，所有API共用）
type UserInfo struct {
	ID          string `json:"id"`                      // 用户ID
	Username    string `json:"username"`                // 用户名
	Email       string `json:"email"`                   // 邮箱
	Role        string `json:"role"`                    // 角色：admin/user
	Status      string `json:"status"`                  // 状态：active/banned
	WorkspaceID string `json:"workspace_id"`            // 当前工作空间
	FirstName   string `json:"first_name,omitempty"`    // 名
	LastName    string `json:"last_name,omitempty"`     // 姓
	LastLoginAt string `json:"last_login_at,omitempty"` // 最后登录时间
	CreatedAt   string `json:"created_at,omitempty"`    // 创建时间
}

// toUserInfo 将User实体转换为UserInfo（所有API共用）
func toUserInfo(u *user.User) UserInfo {
	info := UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        string(u.Role),
		Status:      string(u.Status),
		WorkspaceID: u.WorkspaceID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
	}

	if u.LastLoginAt != nil {
		info.LastLoginAt = u.LastLoginAt.Format(time.RFC3339)
	}
	if !u.CreatedAt.IsZero() {
		info.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}

	return info
}

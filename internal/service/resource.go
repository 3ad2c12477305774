package service

import (
	"time"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/assistant"
	"aisuite/internal/model/conversation"
	"aisuite/internal/model/user"
)

// Actor 发起请求的用户与其当前工作空间
type Actor struct {
	WorkspaceID string
	UserID      string
}

// UserResource 消息中的用户摘要
type UserResource struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// MessageResource 消息的对外 JSON 表示，也是 message 事件的 data
type MessageResource struct {
	Object    string                  `json:"object"`
	ID        string                  `json:"id"`
	Model     string                  `json:"model"`
	Role      conversation.Role       `json:"role"`
	Content   string                  `json:"content"`
	Quote     *string                 `json:"quote"`
	Cost      cost.Count              `json:"cost"`
	CreatedAt time.Time               `json:"created_at"`
	Assistant *assistant.Assistant    `json:"assistant"`
	ParentID  *string                 `json:"parent_id"`
	User      *UserResource           `json:"user"`
	Image     *conversation.ImageFile `json:"image"`
}

// NewMessageResource 序列化消息，u 为消息作者时才会输出 user 字段
func NewMessageResource(msg *conversation.Message, u *user.User) *MessageResource {
	res := &MessageResource{
		Object:    "message",
		ID:        msg.ID,
		Model:     msg.Model,
		Role:      msg.Role,
		Content:   msg.Content,
		Cost:      msg.Cost,
		CreatedAt: msg.CreatedAt,
		Assistant: msg.Assistant,
		Image:     msg.Image,
	}
	if msg.Quote != "" {
		quote := msg.Quote
		res.Quote = &quote
	}
	if msg.ParentID != "" {
		parentID := msg.ParentID
		res.ParentID = &parentID
	}
	if u != nil && msg.UserID != "" && msg.UserID == u.ID {
		res.User = &UserResource{
			ID:        u.ID,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		}
	}
	return res
}

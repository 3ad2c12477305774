package conversation

import (
	"time"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/assistant"
	"aisuite/internal/pkg/id"
)

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ImageFile 消息附带的图片
type ImageFile struct {
	StorageKey  string `bson:"storage_key" json:"-"`
	StorageType string `bson:"storage_type" json:"-"` // 写入时使用的存储类型
	URL         string `bson:"url" json:"url"`
	Ext         string `bson:"ext" json:"ext"`
	Size        int64  `bson:"size" json:"size"`
	Width       int    `bson:"width" json:"width"`
	Height      int    `bson:"height" json:"height"`
	BlurHash    string `bson:"blur_hash,omitempty" json:"blur_hash,omitempty"`
}

// Message 对话树上的一个节点
type Message struct {
	ID          string     `bson:"id" json:"id"`
	Model       string     `bson:"model" json:"model"`
	Role        Role       `bson:"role" json:"role"`
	Content     string     `bson:"content" json:"content"`
	Quote       string     `bson:"quote,omitempty" json:"quote,omitempty"`
	Cost        cost.Count `bson:"cost" json:"cost"`
	ParentID    string     `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	AssistantID string     `bson:"assistant_id,omitempty" json:"assistant_id,omitempty"`
	UserID      string     `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Image       *ImageFile `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`

	// 以下字段由 Conversation.Link 在加载后填充
	Parent    *Message             `bson:"-" json:"-"`
	Assistant *assistant.Assistant `bson:"-" json:"-"`
}

// UserMessageInput 创建用户消息的参数
type UserMessageInput struct {
	Content   string
	UserID    string
	Model     string
	Parent    *Message
	Assistant *assistant.Assistant
	Quote     string
	Image     *ImageFile
}

// NewUserMessage 创建用户消息并挂到对话上，费用为 0
func (c *Conversation) NewUserMessage(in UserMessageInput) *Message {
	msg := &Message{
		ID:        id.New(),
		Model:     in.Model,
		Role:      RoleUser,
		Content:   in.Content,
		Quote:     in.Quote,
		Cost:      cost.Zero,
		UserID:    in.UserID,
		Image:     in.Image,
		CreatedAt: time.Now(),
		Parent:    in.Parent,
		Assistant: in.Assistant,
	}
	if in.Parent != nil {
		msg.ParentID = in.Parent.ID
	}
	if in.Assistant != nil {
		msg.AssistantID = in.Assistant.ID
	}

	c.AddMessage(msg)
	return msg
}

// NewAssistantMessage 创建助手回复并挂到对话上
// parent 为空属于编程错误
func (c *Conversation) NewAssistantMessage(content string, parent *Message, amount cost.Count, model string, a *assistant.Assistant) *Message {
	if parent == nil {
		panic("conversation: assistant message requires a parent message")
	}

	msg := &Message{
		ID:        id.New(),
		Model:     model,
		Role:      RoleAssistant,
		Content:   content,
		Cost:      amount,
		ParentID:  parent.ID,
		CreatedAt: time.Now(),
		Parent:    parent,
		Assistant: a,
	}
	if a != nil {
		msg.AssistantID = a.ID
	}

	c.AddMessage(msg)
	return msg
}

package conversation

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/assistant"
	"aisuite/internal/pkg/id"
)

// ErrMessageNotFound 消息不在该对话中
var ErrMessageNotFound = errors.New("message not found")

// DefaultTitle 新对话的标题
const DefaultTitle = "New conversation"

// MaxTitleLength 标题最大字符数
const MaxTitleLength = 255

// Conversation 对话
// 消息按插入顺序存放，逻辑顺序由 parent 链决定
type Conversation struct {
	ID          string     `bson:"_id" json:"id"`
	WorkspaceID string     `bson:"workspace_id" json:"workspace_id"`
	UserID      string     `bson:"user_id" json:"user_id"`
	Title       string     `bson:"title" json:"title"`
	Cost        cost.Count `bson:"cost" json:"cost"` // 所有消息费用之和
	Messages    []*Message `bson:"messages" json:"messages,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// New 创建空对话
func New(workspaceID, userID string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:          id.New(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Title:       DefaultTitle,
		Cost:        cost.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddMessage 追加消息并累加费用
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.Cost = c.Cost.Add(msg.Cost)
	c.UpdatedAt = time.Now()
}

// FindMessage 按 ID 查找消息
func (c *Conversation) FindMessage(messageID string) (*Message, error) {
	for _, msg := range c.Messages {
		if msg.ID == messageID {
			return msg, nil
		}
	}
	return nil, ErrMessageNotFound
}

// LastMessage 最后插入的消息
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// FirstUserMessage 第一条用户消息
func (c *Conversation) FirstUserMessage() *Message {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			return msg
		}
	}
	return nil
}

// SetTitle 设置标题，超过 255 个字符会被截断
func (c *Conversation) SetTitle(title string) {
	c.Title = TruncateTitle(title)
	c.UpdatedAt = time.Now()
}

// TruncateTitle 截断到 MaxTitleLength 个字符
func TruncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	runes := []rune(title)
	return string(runes[:MaxTitleLength])
}

// Link 从存储加载后恢复 Parent/Assistant 指针
// parent 不在本对话中的消息被当作根节点
func (c *Conversation) Link(assistants map[string]*assistant.Assistant) {
	index := make(map[string]*Message, len(c.Messages))
	for _, msg := range c.Messages {
		index[msg.ID] = msg
	}
	for _, msg := range c.Messages {
		msg.Parent = nil
		if msg.ParentID != "" {
			if parent, ok := index[msg.ParentID]; ok && parent != msg {
				msg.Parent = parent
			}
		}
		if msg.AssistantID != "" && assistants != nil {
			msg.Assistant = assistants[msg.AssistantID]
		}
	}
}

// AssistantIDs 对话中引用到的助手
func (c *Conversation) AssistantIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, msg := range c.Messages {
		if msg.AssistantID != "" && !seen[msg.AssistantID] {
			seen[msg.AssistantID] = true
			ids = append(ids, msg.AssistantID)
		}
	}
	return ids
}

// Collection 集合名称
func (c *Conversation) Collection() string {
	return "conversations"
}

// EnsureIndexes 创建索引
func (c *Conversation) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(c.Collection()).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "workspace_id", Value: 1}, bson.E{Key: "user_id", Value: 1}, bson.E{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_workspace_user_updated"),
		},
		{
			Keys:    bson.D{bson.E{Key: "messages.id", Value: 1}},
			Options: options.Index().SetName("idx_message_id"),
		},
	})
	return err
}

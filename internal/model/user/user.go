package user

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// User 用户实体
// ID使用UUID格式（string）
type User struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	Username    string     `bson:"username" json:"username"`
	Email       string     `bson:"email" json:"email"`
	Password    string     `bson:"password" json:"-"` // bcrypt 哈希，不返回
	Role        Role       `bson:"role" json:"role"`
	Status      Status     `bson:"status" json:"status"`
	WorkspaceID string     `bson:"workspace_id" json:"workspace_id"` // 当前工作空间
	FirstName   string     `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName    string     `bson:"last_name,omitempty" json:"last_name,omitempty"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// Role 用户角色
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Status 用户状态
type Status string

const (
	StatusActive Status = "active"
	StatusBanned Status = "banned"
)

// Collection 集合名称
func (u *User) Collection() string {
	return "users"
}

// EnsureIndexes 创建索引
func (u *User) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(u.Collection()).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "username", Value: 1}},
			Options: options.Index().SetName("idx_username").SetUnique(true),
		},
		{
			Keys:    bson.D{bson.E{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_email").SetUnique(true),
		},
	})
	return err
}

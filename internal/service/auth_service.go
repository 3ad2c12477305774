package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/user"
	"aisuite/internal/model/workspace"
	"aisuite/internal/pkg/id"
	"aisuite/internal/pkg/jwt"
	"aisuite/internal/pkg/password"
	"aisuite/internal/repository"
)

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrUserAlreadyExists = errors.New("用户已存在")
	ErrEmailTaken        = errors.New("邮箱已被注册")
	ErrInvalidPassword   = errors.New("密码错误")
	ErrUserBanned        = errors.New("用户已被禁用")
)

// AuthService 认证服务
type AuthService struct {
	users          UserStore
	workspaces     WorkspaceStore
	jwt            *jwt.JWT
	initialCredits *cost.Count // 新工作空间的积分，nil 表示不设上限
}

// NewAuthService 创建认证服务
func NewAuthService(
	users UserStore,
	workspaces WorkspaceStore,
	jwtSecret string,
	accessTokenExpiry time.Duration,
	initialCredits *cost.Count,
) *AuthService {
	return &AuthService{
		users:          users,
		workspaces:     workspaces,
		jwt:            jwt.NewJWT(jwtSecret, accessTokenExpiry),
		initialCredits: initialCredits,
	}
}

// RegisterInput 注册参数
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      user.Role // 为空时为普通用户
}

// RegisterResult 注册结果
type RegisterResult struct {
	User      *user.User
	Workspace *workspace.Workspace
}

// Register 注册用户并创建个人工作空间
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if existing, _ := s.users.FindByUsername(ctx, in.Username); existing != nil {
		return nil, ErrUserAlreadyExists
	}
	if existing, _ := s.users.FindByEmail(ctx, in.Email); existing != nil {
		return nil, ErrEmailTaken
	}

	role := in.Role
	if role == "" {
		role = user.RoleUser
	}

	hashed, err := password.Hash(in.Password)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		return nil, errors.New("密码加密失败")
	}

	u := &user.User{
		ID:        id.New(),
		Username:  in.Username,
		Email:     strings.ToLower(in.Email),
		Password:  hashed,
		Role:      role,
		Status:    user.StatusActive,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}

	ws := &workspace.Workspace{
		ID:      id.New(),
		Name:    in.Username + "'s workspace",
		OwnerID: u.ID,
	}
	if s.initialCredits != nil {
		credits := *s.initialCredits
		ws.CreditCount = &credits
	}
	u.WorkspaceID = ws.ID

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		log.Error().Err(err).Msg("failed to create user")
		return nil, errors.New("创建用户失败")
	}
	if err := s.workspaces.Create(ctx, ws); err != nil {
		log.Error().Err(err).Str("user_id", u.ID).Msg("failed to create workspace")
		return nil, errors.New("创建工作空间失败")
	}

	return &RegisterResult{User: u, Workspace: ws}, nil
}

// LoginResult 登录结果
type LoginResult struct {
	AccessToken string
	ExpiresIn   int
	TokenType   string
	User        *user.User
}

// Login 用户登录，用户名或邮箱均可
func (s *AuthService) Login(ctx context.Context, login, pwd string) (*LoginResult, error) {
	var (
		u   *user.User
		err error
	)
	if strings.Contains(login, "@") {
		u, err = s.users.FindByEmail(ctx, strings.ToLower(login))
	} else {
		u, err = s.users.FindByUsername(ctx, login)
	}
	if err != nil {
		return nil, ErrUserNotFound
	}

	if !password.Verify(pwd, u.Password) {
		return nil, ErrInvalidPassword
	}
	if u.Status == user.StatusBanned {
		return nil, ErrUserBanned
	}

	accessToken, err := s.jwt.GenerateToken(u.ID, u.WorkspaceID, u.Username, string(u.Role))
	if err != nil {
		log.Error().Err(err).Msg("failed to generate access token")
		return nil, errors.New("生成Token失败")
	}

	if err := s.users.UpdateLastLoginAt(ctx, u.ID); err != nil {
		// 不影响登录流程，只记录警告
		log.Warn().Err(err).Msg("failed to update last login time")
	}

	return &LoginResult{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwt.GetExpiration().Seconds()),
		TokenType:   "Bearer",
		User:        u,
	}, nil
}

// GetUserByID 根据ID获取用户信息
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	return s.users.FindByID(ctx, userID)
}

// ValidateToken 验证Access Token
func (s *AuthService) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return s.jwt.ValidateToken(tokenString)
}

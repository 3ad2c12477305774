package config

import (
	"errors"
	"fmt"
	"time"

	"aisuite/internal/ai/cost"
)

// Config 应用配置根结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Billing   BillingConfig   `mapstructure:"billing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 流式接口不受此限制
}

// AIConfig 各厂商配置，api_key 为空的厂商不注册
type AIConfig struct {
	OpenAI      VendorConfig `mapstructure:"openai"`
	Anthropic   VendorConfig `mapstructure:"anthropic"`
	ElevenLabs  VendorConfig `mapstructure:"elevenlabs"`
	StabilityAI VendorConfig `mapstructure:"stabilityai"`
	Ark         ArkConfig    `mapstructure:"ark"`
	Azure       AzureConfig  `mapstructure:"azure"`
	TitleModel  string       `mapstructure:"title_model"` // 标题生成的默认模型
}

// VendorConfig 厂商通用配置
type VendorConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ArkConfig 火山方舟配置
type ArkConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url"`
	Models      []string `mapstructure:"models"`       // 对话模型（接入点）
	ImageModels []string `mapstructure:"image_models"` // 文生图模型
	MaxTokens   int      `mapstructure:"max_tokens"`
}

// AzureConfig Azure OpenAI 配置
type AzureConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url"` // https://<resource>.openai.azure.com
	Deployments []string `mapstructure:"deployments"`
	APIVersion  string   `mapstructure:"api_version"`
	MaxTokens   int      `mapstructure:"max_tokens"`
}

// BillingConfig 计费配置
type BillingConfig struct {
	Rates          map[string]string `mapstructure:"rates"`           // 费率键 -> 十进制字符串
	RatesFile      string            `mapstructure:"rates_file"`      // TOML 费率文件，覆盖 rates
	InitialCredits string            `mapstructure:"initial_credits"` // 为空表示不设上限
	EventChannel   string            `mapstructure:"event_channel"`   // 积分消耗事件的 Redis 频道
}

// ResolveRates 合并配置与费率文件中的费率
func (b BillingConfig) ResolveRates() (cost.Rates, error) {
	raw := b.Rates
	if b.RatesFile != "" {
		fromFile, err := cost.LoadRatesFile(b.RatesFile)
		if err != nil {
			return nil, err
		}
		raw = cost.Merge(raw, fromFile)
	}
	return cost.ParseRates(raw)
}

// InitialCreditCount 新工作空间的积分，nil 表示不设上限
func (b BillingConfig) InitialCreditCount() (*cost.Count, error) {
	if b.InitialCredits == "" {
		return nil, nil
	}
	c, err := cost.ParseCount(b.InitialCredits)
	if err != nil {
		return nil, fmt.Errorf("initial_credits: %w", err)
	}
	return &c, nil
}

// RateLimitConfig 生成接口限流
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"` // 每个用户每秒请求数，0 表示不限流
	Burst int     `mapstructure:"burst"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`          // JWT密钥
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"` // Access Token过期时间
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"` // 基础路径
	BaseURL  string `mapstructure:"base_url"`  // 基础URL（用于生成访问URL）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	PublicBaseURL   string `mapstructure:"public_base_url"`   // 公共读或 CDN 域名，为空时使用签名URL
	PresignExpiry   int    `mapstructure:"presign_expiry"`    // 预签名URL过期时间（秒）
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if _, err := cost.ParseRates(c.Billing.Rates); err != nil {
		return fmt.Errorf("invalid billing rates: %w", err)
	}
	if _, err := c.Billing.InitialCreditCount(); err != nil {
		return fmt.Errorf("invalid billing config: %w", err)
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("invalid ratelimit, rps and burst must not be negative")
	}

	return nil
}

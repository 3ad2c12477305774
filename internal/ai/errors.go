package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotSupported 请求的模型不在适配器支持列表内
	ErrModelNotSupported = errors.New("model not supported")
	// ErrInvalidParameters 缺少必填参数或参数非法
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrInsufficientCredits 工作空间积分已用完
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrNotFound 实体不存在
	ErrNotFound = errors.New("not found")
	// ErrPromptOrParentRequired prompt 与 parent 都没有提供
	ErrPromptOrParentRequired = errors.New("prompt or parent message is required")
	// ErrStreamNotSettled 流尚未正常结束时读取结果
	ErrStreamNotSettled = errors.New("stream result is not settled")
)

// ApiError 请求已到达厂商，但厂商返回失败
type ApiError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ApiError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}

// NewApiError 创建厂商错误
func NewApiError(provider string, status int, message string) *ApiError {
	return &ApiError{Provider: provider, StatusCode: status, Message: message}
}

// DomainError 调用厂商前的前置条件不满足
type DomainError struct {
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError 创建前置条件错误，kind 为可匹配的哨兵错误
func NewDomainError(message string, kind error) *DomainError {
	return &DomainError{Message: message, Err: kind}
}

// ModelNotSupported 包装模型不支持错误
func ModelNotSupported(model Model) error {
	return fmt.Errorf("%w: %s", ErrModelNotSupported, model)
}

// IsCallerError 调用方错误（4xx），不会重试
func IsCallerError(err error) bool {
	return errors.Is(err, ErrModelNotSupported) ||
		errors.Is(err, ErrInvalidParameters) ||
		errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPromptOrParentRequired)
}

// IsProviderError 厂商错误
func IsProviderError(err error) bool {
	var apiErr *ApiError
	return errors.As(err, &apiErr)
}

package http

// 业务错误码，前三位与 HTTP 状态码一致
const (
	CodeBadBody             = 40001
	CodeMissingParam        = 40002
	CodeModelNotSupported   = 40003
	CodePromptOrParent      = 40004
	CodeUnauthorized        = 40101
	CodeInvalidToken        = 40102
	CodeForbidden           = 40301
	CodeInsufficientCredits = 40201
	CodeNotFound            = 40401
	CodeConflict            = 40901
	CodeTooManyRequests     = 42901
	CodePanic               = 50000
	CodeInternal            = 50001
	CodeProvider            = 50201
	CodeUnavailable         = 50301
)

// ErrorResponse 错误响应（所有API共用）
type ErrorResponse struct {
	Code    int    `json:"code"`             // 错误码（非0表示错误）
	Message string `json:"message"`          // 错误消息
	Detail  string `json:"detail,omitempty"` // 错误详情（可选）
}

// SuccessResponse 成功响应（所有API共用）
type SuccessResponse struct {
	Code    int    `json:"code"`           // 状态码（0表示成功）
	Message string `json:"message"`        // 响应消息
	Data    any    `json:"data,omitempty"` // 响应数据（可选）
}

// PageData 分页数据
type PageData struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(message string, data any) *SuccessResponse {
	return &SuccessResponse{
		Code:    0,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string, detail ...string) *ErrorResponse {
	resp := &ErrorResponse{
		Code:    code,
		Message: message,
	}
	if len(detail) > 0 && detail[0] != "" {
		resp.Detail = detail[0]
	}
	return resp
}

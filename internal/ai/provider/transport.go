package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"aisuite/internal/ai"
)

// Doer 发送 HTTP 请求，测试中可替换
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTimeout 非流式请求的默认超时
const DefaultTimeout = 120 * time.Second

// Transport 厂商 HTTP 客户端封装
type Transport struct {
	provider string
	baseURL  string
	headers  map[string]string
	doer     Doer
}

// NewTransport 创建厂商客户端，doer 为空时使用不带整体超时的 http.Client
// 流式响应的生命周期由 ctx 控制
func NewTransport(provider, baseURL string, headers map[string]string, doer Doer) *Transport {
	if doer == nil {
		doer = &http.Client{}
	}
	return &Transport{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		headers:  headers,
		doer:     doer,
	}
}

// Provider 厂商名称
func (t *Transport) Provider() string {
	return t.provider
}

// PostJSON 以 JSON 发送请求，非 2xx 时返回 *ai.ApiError 并关闭响应体
func (t *Transport) PostJSON(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", t.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", t.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return t.do(req)
}

// FilePart multipart 请求中的文件字段
type FilePart struct {
	Field    string
	Filename string
	Reader   io.Reader
}

// PostMultipart 以 multipart/form-data 发送请求
func (t *Transport) PostMultipart(ctx context.Context, path string, fields map[string]string, file FilePart) (*http.Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(file.Field, file.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Reader); err != nil {
		return nil, fmt.Errorf("failed to copy form file: %w", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", t.provider, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return t.do(req)
}

// DoJSON 发送 JSON 请求并解码 JSON 响应
func (t *Transport) DoJSON(ctx context.Context, path string, body any, out any) error {
	resp, err := t.PostJSON(ctx, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return t.Decode(resp, out)
}

// GetJSON 发送 GET 请求并解码 JSON 响应
func (t *Transport) GetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", t.provider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return t.Decode(resp, out)
}

// Decode 解码 JSON 响应体
func (t *Transport) Decode(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ai.NewApiError(t.provider, resp.StatusCode, fmt.Sprintf("failed to decode response: %v", err))
	}
	return nil
}

func (t *Transport) do(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.doer.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ai.NewApiError(t.provider, 0, err.Error())
	}

	log.Debug().
		Str("provider", t.provider).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("provider request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, ai.NewApiError(t.provider, resp.StatusCode, ErrorMessage(raw))
	}
	return resp, nil
}

// ErrorMessage 从厂商错误响应中提取可读信息
// 兼容 {"error":{"message"}}、{"error":"..."}、{"detail":{"message"}}、{"detail":"..."} 与 {"message"}
func ErrorMessage(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, field := range []json.RawMessage{body.Error, body.Detail} {
		if msg := nestedMessage(field); msg != "" {
			return msg
		}
	}
	if body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}

func nestedMessage(field json.RawMessage) string {
	if len(field) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(field, &obj); err == nil {
		return obj.Message
	}
	return ""
}

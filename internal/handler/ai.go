package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aisuite/internal/ai"
	"aisuite/internal/model/library"
	httputil "aisuite/internal/pkg/http"
	"aisuite/internal/service"
)

// maxAudioUpload 转写上传文件的大小上限（Whisper 限制 25MB）
const maxAudioUpload = 25 << 20

// AIHandler 单次生成与生成物管理
type AIHandler struct {
	library *service.LibraryService
	factory *ai.Factory
}

// NewAIHandler 创建生成处理器
func NewAIHandler(library *service.LibraryService, factory *ai.Factory) *AIHandler {
	return &AIHandler{library: library, factory: factory}
}

// withPrompt 把顶层 prompt 合并进参数
func withPrompt(params map[string]any, prompt string) ai.Params {
	out := ai.Params{}
	for k, v := range params {
		out[k] = v
	}
	if prompt != "" {
		out["prompt"] = prompt
	}
	return out
}

// Models 各能力可用的模型
// @Summary      可用模型
// @Tags         AI
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/ai/models [get]
func (h *AIHandler) Models(c *gin.Context) {
	out := make(map[ai.Capability][]ai.Model, len(ai.Capabilities))
	for _, capability := range ai.Capabilities {
		models := h.factory.Models(capability)
		if models == nil {
			models = []ai.Model{}
		}
		out[capability] = models
	}
	okResponse(c, http.StatusOK, out)
}

// Voices 可用声音
// @Summary      可用声音
// @Tags         AI
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/ai/voices [get]
func (h *AIHandler) Voices(c *gin.Context) {
	voices, err := h.library.Voices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusOK, voices)
}

// CompletionRequest 文本补全请求
type CompletionRequest struct {
	Model  string         `json:"model" binding:"required"`
	Prompt string         `json:"prompt" binding:"required"`
	Params map[string]any `json:"params"` // temperature、max_tokens 等
}

// Complete 文本补全（SSE）
// @Summary      文本补全
// @Description  以 SSE 输出 token，结束时输出 done 事件，data 为保存的生成物（含 cost）
// @Tags         AI
// @Accept       json
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        request  body      CompletionRequest  true  "补全请求"
// @Success      200      {string}  string  "event stream"
// @Failure      400      {object}  ErrorResponse
// @Failure      402      {object}  ErrorResponse
// @Router       /api/v1/ai/completions [post]
func (h *AIHandler) Complete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	streamer := NewEventStreamer(c)
	err := h.library.Complete(c.Request.Context(), actor, ai.Model(req.Model), withPrompt(req.Params, req.Prompt), streamer.Emit)
	streamer.finish(err)
}

// CodeCompletionRequest 代码补全请求
type CodeCompletionRequest struct {
	Model    string `json:"model" binding:"required"`
	Prompt   string `json:"prompt" binding:"required"`
	Language string `json:"language" binding:"required"` // 编程语言
}

// CompleteCode 代码补全（SSE）
// @Summary      代码补全
// @Tags         AI
// @Accept       json
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        request  body      CodeCompletionRequest  true  "代码补全请求"
// @Success      200      {string}  string  "event stream"
// @Failure      400      {object}  ErrorResponse
// @Failure      402      {object}  ErrorResponse
// @Router       /api/v1/ai/code-completions [post]
func (h *AIHandler) CompleteCode(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req CodeCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	streamer := NewEventStreamer(c)
	err := h.library.CompleteCode(c.Request.Context(), actor, ai.Model(req.Model), req.Prompt, req.Language, streamer.Emit)
	streamer.finish(err)
}

// ImageRequest 图片生成请求
type ImageRequest struct {
	Model  string         `json:"model" binding:"required"`
	Prompt string         `json:"prompt" binding:"required"`
	Width  int            `json:"width" binding:"omitempty,min=64,max=4096"`
	Height int            `json:"height" binding:"omitempty,min=64,max=4096"`
	Params map[string]any `json:"params"` // quality、style、negative_prompt 等
}

// GenerateImage 生成图片
// @Summary      生成图片
// @Tags         AI
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ImageRequest  true  "图片生成请求"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Failure      402      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /api/v1/ai/images [post]
func (h *AIHandler) GenerateImage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	item, err := h.library.GenerateImage(c.Request.Context(), actor, service.ImageInput{
		Model:  ai.Model(req.Model),
		Width:  req.Width,
		Height: req.Height,
		Params: withPrompt(req.Params, req.Prompt),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusCreated, item)
}

// SpeechRequest 语音合成请求
type SpeechRequest struct {
	VoiceID string         `json:"voice_id" binding:"required"`
	Model   string         `json:"model"` // 为空时使用声音默认模型
	Prompt  string         `json:"prompt" binding:"required"`
	Params  map[string]any `json:"params"` // stability、similarity_boost 等
}

// GenerateSpeech 语音合成
// @Summary      语音合成
// @Tags         AI
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SpeechRequest  true  "语音合成请求"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Failure      402      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /api/v1/ai/speeches [post]
func (h *AIHandler) GenerateSpeech(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	item, err := h.library.GenerateSpeech(c.Request.Context(), actor, service.SpeechInput{
		VoiceID: req.VoiceID,
		Model:   ai.Model(req.Model),
		Params:  withPrompt(req.Params, req.Prompt),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusCreated, item)
}

// Transcribe 语音转写
// @Summary      语音转写
// @Tags         AI
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file      formData  file    true   "音频文件"
// @Param        model     formData  string  true   "模型"
// @Param        language  formData  string  false  "语言（ISO-639-1）"
// @Param        prompt    formData  string  false  "提示文本"
// @Success      201       {object}  map[string]interface{}
// @Failure      400       {object}  ErrorResponse
// @Failure      402       {object}  ErrorResponse
// @Router       /api/v1/ai/transcriptions [post]
func (h *AIHandler) Transcribe(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAudioUpload+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeMissingParam, "file is required", err.Error()))
		return
	}
	if header.Size > maxAudioUpload {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeBadBody, "file is too large"))
		return
	}
	model := strings.TrimSpace(c.PostForm("model"))
	if model == "" {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeMissingParam, "model is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		badBody(c, err)
		return
	}
	defer file.Close()

	params := ai.Params{}
	for _, key := range []string{"language", "prompt"} {
		if v := c.PostForm(key); v != "" {
			params[key] = v
		}
	}

	item, err := h.library.Transcribe(c.Request.Context(), actor, service.TranscriptionInput{
		Model:    ai.Model(model),
		Audio:    file,
		Filename: header.Filename,
		Params:   params,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusCreated, item)
}

// ListLibrary 生成物列表
// @Summary      生成物列表
// @Tags         生成物
// @Produce      json
// @Security     BearerAuth
// @Param        type       query     string  false  "类型：image/speech/transcription/completion"
// @Param        page       query     int     false  "页码"
// @Param        page_size  query     int     false  "每页数量"
// @Success      200        {object}  map[string]interface{}
// @Router       /api/v1/library [get]
func (h *AIHandler) ListLibrary(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	page := pageFrom(c)
	items, total, err := h.library.List(c.Request.Context(), actor, library.ItemType(c.Query("type")), page)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []*library.Item{}
	}
	okResponse(c, http.StatusOK, pageData(items, total, page))
}

// GetLibraryItem 生成物详情
// @Summary      生成物详情
// @Tags         生成物
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "生成物ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/library/{id} [get]
func (h *AIHandler) GetLibraryItem(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	item, err := h.library.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	okResponse(c, http.StatusOK, item)
}

// DeleteLibraryItem 删除生成物
// @Summary      删除生成物
// @Tags         生成物
// @Security     BearerAuth
// @Param        id   path  string  true  "生成物ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/library/{id} [delete]
func (h *AIHandler) DeleteLibraryItem(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.library.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"aisuite/internal/ai"
	"aisuite/internal/pkg/ctxutil"
	httputil "aisuite/internal/pkg/http"
	"aisuite/internal/repository"
	"aisuite/internal/service"
)

// ErrorResponse 错误响应
type ErrorResponse = httputil.ErrorResponse

// actorFrom 读取认证中间件写入的用户与工作空间
func actorFrom(c *gin.Context) (service.Actor, bool) {
	ctx := c.Request.Context()
	userID, ok := ctxutil.GetUserID(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeUnauthorized, "未授权"))
		return service.Actor{}, false
	}
	workspaceID, ok := ctxutil.GetWorkspaceID(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeUnauthorized, "未授权"))
		return service.Actor{}, false
	}
	return service.Actor{WorkspaceID: workspaceID, UserID: userID}, true
}

// badBody 请求体解析失败
func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeBadBody, "Invalid request body", err.Error()))
}

// pageFrom 读取 page 与 page_size 查询参数
func pageFrom(c *gin.Context) repository.Page {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	size, _ := strconv.ParseInt(c.DefaultQuery("page_size", "20"), 10, 64)
	return repository.Page{Page: page, PageSize: size}.Normalize()
}

// pageData 分页响应
func pageData(items any, total int64, page repository.Page) httputil.PageData {
	return httputil.PageData{Items: items, Total: total, Page: page.Page, Limit: page.PageSize}
}

// errorStatus 把领域错误映射为 HTTP 状态码与业务错误码
func errorStatus(err error) (int, int) {
	var apiErr *ai.ApiError
	switch {
	case errors.Is(err, ai.ErrInsufficientCredits):
		return http.StatusPaymentRequired, httputil.CodeInsufficientCredits
	case errors.Is(err, ai.ErrModelNotSupported):
		return http.StatusBadRequest, httputil.CodeModelNotSupported
	case errors.Is(err, ai.ErrPromptOrParentRequired):
		return http.StatusBadRequest, httputil.CodePromptOrParent
	case errors.Is(err, ai.ErrInvalidParameters):
		return http.StatusBadRequest, httputil.CodeMissingParam
	case errors.Is(err, ai.ErrNotFound):
		return http.StatusNotFound, httputil.CodeNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, httputil.CodeConflict
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, httputil.CodeProvider
	default:
		return http.StatusInternalServerError, httputil.CodeInternal
	}
}

// respondError 输出错误响应，调用方错误直接返回错误消息，内部错误只记录日志
func respondError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		c.Abort()
		return
	}

	status, code := errorStatus(err)
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", c.GetString("request_id")).Msg("request failed")
		message = "Internal Server Error"
	}
	c.JSON(status, httputil.NewErrorResponse(code, message))
}

// okResponse 成功响应
func okResponse(c *gin.Context, status int, data any) {
	c.JSON(status, httputil.NewSuccessResponse("success", data))
}

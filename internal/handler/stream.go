package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"aisuite/internal/service"
)

// EventStreamer 把生成事件写成 SSE
// 第一个事件写出时才发送响应头，之前的失败仍可以返回普通 JSON 错误
type EventStreamer struct {
	c       *gin.Context
	seq     int
	started bool
}

// NewEventStreamer 创建 SSE 输出
func NewEventStreamer(c *gin.Context) *EventStreamer {
	return &EventStreamer{c: c}
}

// Started 是否已经写出响应头
func (s *EventStreamer) Started() bool {
	return s.started
}

func (s *EventStreamer) start() {
	h := s.c.Writer.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	// 流式响应不受服务器写超时限制
	_ = http.NewResponseController(s.c.Writer).SetWriteDeadline(time.Time{})

	s.c.Status(http.StatusOK)
	s.c.Writer.WriteHeaderNow()
	s.started = true
}

// Emit 写出一个事件并立即刷新，客户端断开时返回错误
func (s *EventStreamer) Emit(e service.Event) error {
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	if !s.started {
		s.start()
	}

	s.seq++
	err := sse.Encode(s.c.Writer, sse.Event{
		Event: string(e.Type),
		Id:    strconv.Itoa(s.seq),
		Data:  e.Data,
	})
	if err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

// finish 流式接口的收尾：流未开始时按普通请求返回错误
func (s *EventStreamer) finish(err error) {
	if err == nil || s.started {
		return
	}
	respondError(s.c, err)
}

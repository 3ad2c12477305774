package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DoneMarker OpenAI 风格的结束标记
const DoneMarker = "[DONE]"

// Event 一条完整的 SSE 事件
type Event struct {
	ID    string
	Event string // 未声明时为空
	Data  string // 多行 data 以 \n 连接
}

// Type 事件类型，未声明时为 "message"
func (e Event) Type() string {
	if e.Event == "" {
		return "message"
	}
	return e.Event
}

// Decode 把 data 解析为 JSON
func (e Event) Decode(v any) error {
	return json.Unmarshal([]byte(e.Data), v)
}

// StreamError 流中出现的 error 事件，终止整个序列
type StreamError struct {
	Data string
}

func (e *StreamError) Error() string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Data), &payload); err == nil {
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("stream error: %s", e.Data)
}

// Decoder 把厂商的 event-stream 响应体解析为事件序列
// 分块边界与事件边界无关：按行缓冲，遇到空行才产出事件
type Decoder struct {
	r   *bufio.Reader
	err error
}

// NewDecoder 创建解码器
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next 返回下一个事件
// 连接正常关闭或遇到 [DONE] 时返回 io.EOF；error 事件返回 *StreamError
func (d *Decoder) Next() (Event, error) {
	if d.err != nil {
		return Event{}, d.err
	}

	var (
		ev      Event
		data    []string
		hasData bool
	)

	for {
		line, err := d.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			d.err = err
			return Event{}, err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData || ev.Event != "" {
				ev.Data = strings.Join(data, "\n")
				return d.emit(ev)
			}
			if eof {
				d.err = io.EOF
				return Event{}, io.EOF
			}
			continue
		}

		if !strings.HasPrefix(line, ":") {
			field, value := splitField(line)
			switch field {
			case "event":
				ev.Event = value
			case "data":
				data = append(data, value)
				hasData = true
			case "id":
				ev.ID = value
			}
		}

		if eof {
			if hasData || ev.Event != "" {
				ev.Data = strings.Join(data, "\n")
				out, err := d.emit(ev)
				if err == nil {
					d.err = io.EOF
				}
				return out, err
			}
			d.err = io.EOF
			return Event{}, io.EOF
		}
	}
}

func (d *Decoder) emit(ev Event) (Event, error) {
	if strings.TrimSpace(ev.Data) == DoneMarker {
		d.err = io.EOF
		return Event{}, io.EOF
	}
	if ev.Event == "error" {
		d.err = &StreamError{Data: ev.Data}
		return Event{}, d.err
	}
	return ev, nil
}

// splitField 拆分 "field: value"，冒号后的单个空格被去掉
func splitField(line string) (string, string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return line, ""
	}
	value := line[i+1:]
	value = strings.TrimPrefix(value, " ")
	return line[:i], value
}

// Collect 读出所有事件，主要用于测试
func Collect(d *Decoder) ([]Event, error) {
	var events []Event
	for {
		ev, err := d.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

package ai

import (
	"errors"
	"io"

	"aisuite/internal/ai/cost"
)

// Token 流式生成的一个增量片段
type Token struct {
	Content string
}

// Usage 流式过程中累计的用量
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result 流结束后确定的用量与费用
type Result struct {
	Usage Usage
	Cost  cost.Count
}

// TokenSource 适配器实现的底层流
// Recv 在正常结束时返回 io.EOF，之后 Result 才可被调用
type TokenSource interface {
	Recv() (Token, error)
	Result() Result
	Close() error
}

// Stream 携带最终结果的生成流，只允许一个消费者
// 先循环 Recv 直到 io.EOF，再读取 Result；出错后 Result 不可用
type Stream struct {
	src TokenSource

	done    bool
	settled bool
	result  Result
	err     error
}

// NewStream 包装底层流
func NewStream(src TokenSource) *Stream {
	return &Stream{src: src}
}

// Recv 读取下一个 token
func (s *Stream) Recv() (Token, error) {
	if s.done {
		if s.err != nil {
			return Token{}, s.err
		}
		return Token{}, io.EOF
	}

	tok, err := s.src.Recv()
	if err == nil {
		return tok, nil
	}

	s.done = true
	if errors.Is(err, io.EOF) {
		s.result = s.src.Result()
		s.settled = true
		_ = s.src.Close()
		return Token{}, io.EOF
	}

	s.err = err
	_ = s.src.Close()
	return Token{}, err
}

// Result 最终用量与费用，只有在 Recv 返回 io.EOF 之后可用
func (s *Stream) Result() (Result, error) {
	if !s.settled {
		return Result{}, ErrStreamNotSettled
	}
	return s.result, nil
}

// Close 提前结束，释放底层连接
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.err = io.ErrClosedPipe
	return s.src.Close()
}

// Collect 读完整个流，返回拼接后的文本与结果
func Collect(s *Stream) (string, Result, error) {
	var buf []byte
	for {
		tok, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return string(buf), Result{}, err
		}
		buf = append(buf, tok.Content...)
	}
	res, err := s.Result()
	return string(buf), res, err
}

// FuncSource 由函数组装的 TokenSource
type FuncSource struct {
	RecvFunc   func() (Token, error)
	ResultFunc func() Result
	CloseFunc  func() error
}

func (f *FuncSource) Recv() (Token, error) {
	return f.RecvFunc()
}

func (f *FuncSource) Result() Result {
	if f.ResultFunc == nil {
		return Result{Cost: cost.Zero}
	}
	return f.ResultFunc()
}

func (f *FuncSource) Close() error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc()
}

// SliceSource 固定 token 序列，可在末尾返回错误
type SliceSource struct {
	Tokens []string
	Err    error
	Res    Result

	pos    int
	closed bool
}

func (s *SliceSource) Recv() (Token, error) {
	if s.pos < len(s.Tokens) {
		tok := Token{Content: s.Tokens[s.pos]}
		s.pos++
		return tok, nil
	}
	if s.Err != nil {
		return Token{}, s.Err
	}
	return Token{}, io.EOF
}

func (s *SliceSource) Result() Result {
	return s.Res
}

func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}

// Closed 是否已被关闭
func (s *SliceSource) Closed() bool {
	return s.closed
}

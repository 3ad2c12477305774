package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Event 领域事件
type Event interface {
	Name() string
}

// Listener 事件监听器
type Listener func(ctx context.Context, e Event) error

// Dispatcher 同步事件分发器
// 监听器按订阅顺序执行，单个监听器失败只记录日志，不影响其他监听器和调用方
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

// NewDispatcher 创建分发器
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[string][]Listener)}
}

// Subscribe 订阅事件
func (d *Dispatcher) Subscribe(name string, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[name] = append(d.listeners[name], l)
}

// Dispatch 分发事件
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	d.mu.RLock()
	listeners := append([]Listener(nil), d.listeners[e.Name()]...)
	d.mu.RUnlock()

	for _, l := range listeners {
		if err := l(ctx, e); err != nil {
			log.Warn().Err(err).Str("event", e.Name()).Msg("event listener failed")
		}
	}
}

// Publisher 消息发布方
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// PublishTo 把事件以 JSON 发布到频道
func PublishTo(p Publisher, channel string) Listener {
	return func(ctx context.Context, e Event) error {
		return p.Publish(ctx, channel, e)
	}
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Topic 评分事件统一发布到的主题
const Topic = "grade.events"

// ErrBusClosed 事件总线已关闭
var ErrBusClosed = errors.New("事件总线已关闭")

// Bus 基于 watermill gochannel 的进程内事件总线（对外导出）
// 没有订阅者时发布的事件直接丢弃
type Bus struct {
	pubsub *gochannel.GoChannel
	closed atomic.Bool
}

// BusOption 事件总线选项
type BusOption func(*busOptions)

type busOptions struct {
	buffer int64
	debug  bool
	trace  bool
}

// WithBuffer 设置每个订阅者的输出缓冲
func WithBuffer(n int64) BusOption {
	return func(o *busOptions) {
		o.buffer = n
	}
}

// WithDebugLog 打开 watermill 的调试日志
func WithDebugLog(debug, trace bool) BusOption {
	return func(o *busOptions) {
		o.debug = debug
		o.trace = trace
	}
}

// NewBus 创建事件总线
func NewBus(opts ...BusOption) *Bus {
	o := &busOptions{buffer: 64}
	for _, opt := range opts {
		opt(o)
	}

	logger := watermill.NewStdLogger(o.debug, o.trace)
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            o.buffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)
	return &Bus{pubsub: pubsub}
}

// Publish 发布事件
func (b *Bus) Publish(ctx context.Context, event *GradeEvent) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("plan", event.Plan)
	msg.Metadata.Set("timestamp", event.Timestamp.Format(time.RFC3339Nano))
	if ctx != nil {
		msg.SetContext(ctx)
	}

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

// Subscribe 订阅事件，types 为空时接收全部类型
// 返回的通道在 ctx 结束或总线关闭后关闭
func (b *Bus) Subscribe(ctx context.Context, types ...EventType) (<-chan *GradeEvent, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	messages, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("订阅事件失败: %w", err)
	}

	wanted := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}

	out := make(chan *GradeEvent)
	go func() {
		defer close(out)
		for msg := range messages {
			msg.Ack()

			var event GradeEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.Printf("⚠️ [事件总线] 解析事件失败: MessageID=%s, Error=%v", msg.UUID, err)
				continue
			}
			if len(wanted) > 0 {
				if _, ok := wanted[event.Type]; !ok {
					continue
				}
			}

			select {
			case out <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close 关闭事件总线，所有订阅通道随之关闭
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.pubsub.Close()
}

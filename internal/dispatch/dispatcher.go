// Package dispatch 把 monitor 产生的事件按顺序投递给消费者。
//
// Dispatch 不等待消费者处理完成；内部是无界队列加一个投递 goroutine，
// 因此事件不会丢失也不会乱序，每个消费者对每个事件恰好收到一次。
package dispatch

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Hara602/cordID/internal/model"
)

// Consumer 在身份解析完成后被调用
type Consumer interface {
	OnDeviceEvent(kind model.EventKind, ev model.DeviceEvent)
}

// ConsumerFunc 函数适配器
type ConsumerFunc func(kind model.EventKind, ev model.DeviceEvent)

func (f ConsumerFunc) OnDeviceEvent(kind model.EventKind, ev model.DeviceEvent) { f(kind, ev) }

type Dispatcher struct {
	mu        sync.Mutex
	queue     []model.DeviceEvent
	consumers []Consumer
	closed    bool

	notify chan struct{}
	done   chan struct{}
	log    *zap.Logger
}

func New(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		log:    log,
	}
	go d.loop()
	return d
}

// Subscribe 只对之后分发的事件生效
func (d *Dispatcher) Subscribe(c Consumer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers = append(d.consumers, c)
}

// Dispatch 入队后立即返回；关闭后的事件被丢弃
func (d *Dispatcher) Dispatch(ev model.DeviceEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("dispatch after close", zap.String("identity", string(ev.Identity)))
		return
	}
	d.queue = append(d.queue, ev)
	select {
	case d.notify <- struct{}{}:
	default:
	}
	d.mu.Unlock()
}

// Close 投递完剩余事件后返回
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.notify)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		_, open := <-d.notify
		for {
			d.mu.Lock()
			batch := d.queue
			d.queue = nil
			consumers := append([]Consumer(nil), d.consumers...)
			d.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				for _, c := range consumers {
					d.deliver(c, ev)
				}
			}
		}
		if !open {
			return
		}
	}
}

// deliver 消费者 panic 不影响后续事件
func (d *Dispatcher) deliver(c Consumer, ev model.DeviceEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("consumer panicked", zap.Any("panic", r), zap.String("identity", string(ev.Identity)))
		}
	}()
	c.OnDeviceEvent(ev.Kind, ev)
}

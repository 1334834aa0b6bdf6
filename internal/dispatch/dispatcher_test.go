package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Hara602/cordID/internal/model"
)

type collector struct {
	mu   sync.Mutex
	seen []model.Identity
}

func (c *collector) OnDeviceEvent(_ model.EventKind, ev model.DeviceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, ev.Identity)
}

func (c *collector) ids() []model.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Identity(nil), c.seen...)
}

func TestDispatch_PreservesOrderExactlyOnce(t *testing.T) {
	d := New(zaptest.NewLogger(t))
	a, b := &collector{}, &collector{}
	d.Subscribe(a)
	d.Subscribe(b)

	var want []model.Identity
	for i := 0; i < 500; i++ {
		id := model.Identity(fmt.Sprintf("SERIAL:%d", i))
		want = append(want, id)
		d.Dispatch(model.DeviceEvent{Kind: model.EventAdd, Identity: id})
	}
	d.Close()

	assert.Equal(t, want, a.ids())
	assert.Equal(t, want, b.ids())
}

func TestDispatch_DoesNotWaitForConsumer(t *testing.T) {
	d := New(zaptest.NewLogger(t))
	release := make(chan struct{})
	got := &collector{}
	d.Subscribe(ConsumerFunc(func(kind model.EventKind, ev model.DeviceEvent) {
		<-release
		got.OnDeviceEvent(kind, ev)
	}))

	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Dispatch(model.DeviceEvent{Identity: model.Identity(fmt.Sprint(i))})
	}
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	d.Close()
	require.Len(t, got.ids(), 10)
	assert.Equal(t, model.Identity("0"), got.ids()[0])
}

func TestDispatch_ConsumerPanicIsContained(t *testing.T) {
	d := New(zaptest.NewLogger(t))
	got := &collector{}
	d.Subscribe(ConsumerFunc(func(_ model.EventKind, ev model.DeviceEvent) {
		if ev.Identity == "bad" {
			panic("boom")
		}
	}))
	d.Subscribe(got)

	d.Dispatch(model.DeviceEvent{Identity: "bad"})
	d.Dispatch(model.DeviceEvent{Identity: "good"})
	d.Close()

	assert.Equal(t, []model.Identity{"bad", "good"}, got.ids())
}

func TestClose_Idempotent(t *testing.T) {
	d := New(nil)
	d.Close()
	d.Close()
	d.Dispatch(model.DeviceEvent{Identity: "late"})
}

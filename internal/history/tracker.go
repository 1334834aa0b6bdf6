package history

import (
	"fmt"

	"github.com/Hara602/cordID/internal/model"
)

// Tracker 记录每个身份观测到的最高链路速率 (Mbps)，只增不减。
// 非并发安全，由 monitor 的锁保护。
type Tracker struct {
	max map[model.Identity]int
}

func NewTracker() *Tracker {
	return &Tracker{max: make(map[model.Identity]int)}
}

// Load 用持久化的历史初始化
func (t *Tracker) Load(history map[model.Identity]int) {
	t.max = make(map[model.Identity]int, len(history))
	for id, mbps := range history {
		t.max[id] = mbps
	}
}

// Observe 记录一次速率观测。降级是相对历史最高值判断的，
// 部分恢复但仍低于峰值时仍视为降级。速率未知时不做任何改变。
func (t *Tracker) Observe(id model.Identity, speed model.Speed) model.LinkHealth {
	if !speed.Known {
		known, ok := t.max[id]
		if !ok {
			return model.LinkHealth{}
		}
		return model.LinkHealth{KnownMax: known}
	}

	h := model.LinkHealth{Observed: true}
	known, ok := t.max[id]
	switch {
	case !ok, speed.Mbps > known:
		t.max[id] = speed.Mbps
		h.IsNewMax = true
		h.KnownMax = speed.Mbps
	case speed.Mbps < known:
		h.IsDowngraded = true
		h.KnownMax = known
	default:
		h.KnownMax = known
	}
	return h
}

// Max 历史最高速率
func (t *Tracker) Max(id model.Identity) (int, bool) {
	mbps, ok := t.max[id]
	return mbps, ok
}

// Export 返回副本
func (t *Tracker) Export() map[model.Identity]int {
	out := make(map[model.Identity]int, len(t.max))
	for id, mbps := range t.max {
		out[id] = mbps
	}
	return out
}

// DowngradeMessage 给操作员的提示
func DowngradeMessage(current model.Speed, knownMax int) string {
	history := fmt.Sprintf("We have previously observed this device on your system connect at %s (%s).",
		model.FormatMbps(knownMax), model.SpeedLabel(knownMax))
	if current.Known && current.Mbps <= 480 && knownMax >= 5000 {
		return "Running at legacy USB 2.0 speeds. " + history
	}
	return fmt.Sprintf("Running at %s but %s", current, history)
}

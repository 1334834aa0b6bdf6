package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind 规范化后的 udev 事件类型（封闭集合）
type EventKind int

const (
	EventIgnored EventKind = iota // 未识别的 action，仍然记录和分发
	EventAdd
	EventRemove
	EventChange
	EventBind
	EventUnbind
)

// ParseEventKind 将内核/udev 的 action 字符串映射为 EventKind
func ParseEventKind(action string) EventKind {
	switch action {
	case "add":
		return EventAdd
	case "remove":
		return EventRemove
	case "change":
		return EventChange
	case "bind":
		return EventBind
	case "unbind":
		return EventUnbind
	default:
		return EventIgnored
	}
}

func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventRemove:
		return "remove"
	case EventChange:
		return "change"
	case EventBind:
		return "bind"
	case EventUnbind:
		return "unbind"
	default:
		return "ignored"
	}
}

// LogName 事件日志里显示的名称
func (k EventKind) LogName() string {
	switch k {
	case EventAdd:
		return "Connected"
	case EventRemove:
		return "Disconnected"
	case EventChange:
		return "Changed"
	case EventBind:
		return "Bound"
	case EventUnbind:
		return "Unbound"
	default:
		return "Other"
	}
}

// Present 事件发生后设备是否仍在总线上（可以读取链路速率）
func (k EventKind) Present() bool {
	return k == EventAdd || k == EventChange || k == EventBind
}

// LinkHealth 一次速率观测的结果
type LinkHealth struct {
	Observed     bool // false: 速率未知，历史未变化
	IsNewMax     bool
	IsDowngraded bool
	KnownMax     int // Mbps
}

// DeviceEvent 经过身份解析后分发给消费者的事件
type DeviceEvent struct {
	ID        uuid.UUID
	Kind      EventKind
	Action    string // 原始 action
	Identity  Identity
	Name      string // 已解析的显示名称（可能来自 registry）
	Device    DeviceSnapshot
	Health    LinkHealth
	Timestamp time.Time
}

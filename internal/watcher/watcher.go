package watcher

import (
	"errors"
	"time"
)

var (
	ErrUnsupported = errors.New("watcher: usb monitoring is only supported on linux")
	ErrNoDevPath   = errors.New("watcher: event has no DEVPATH")
)

const sysfsMount = "/sys"

// RawEvent 总线上报的原始事件 (action + udev 属性)
type RawEvent struct {
	Action string
	Env    map[string]string
}

// BusSource 定义接口：带超时的阻塞读取，超时返回 ok=false
type BusSource interface {
	Next(timeout time.Duration) (ev RawEvent, ok bool, err error)
	Close() error
}

// Enumerator 枚举当前已连接的 USB 设备
type Enumerator interface {
	Enumerate() ([]RawEvent, error)
}

// New 打开 udev netlink 事件源
func New() (BusSource, error) {
	return newSource()
}

// NewEnumerator root 与 Reader 使用的 sysfs 挂载点一致
func NewEnumerator(root string) Enumerator {
	return newEnumerator(root)
}

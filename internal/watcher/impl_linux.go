package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
	"golang.org/x/sys/unix"
)

type netlinkSource struct {
	conn    *netlink.UEventConn
	matcher netlink.Matcher
}

// usbDeviceMatcher 只关心物理设备 (usb_device)，跳过 usb_interface 避免同一个插头产生重复事件
func usbDeviceMatcher() netlink.Matcher {
	return &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{
				Env: map[string]string{
					"SUBSYSTEM": "^usb$",
					"DEVTYPE":   "^usb_device$",
				},
			},
		},
	}
}

func newSource() (BusSource, error) {
	// 监听 UDEV 事件 (带 ID_* 属性)，连接 NETLINK_KOBJECT_UEVENT
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("netlink connect: %w", err)
	}
	matcher := usbDeviceMatcher()
	if err := matcher.Compile(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("compile matcher: %w", err)
	}
	return &netlinkSource{conn: conn, matcher: matcher}, nil
}

// Next 用 poll 等待 socket 可读，超时后返回，调用方借此检查停止信号
func (s *netlinkSource) Next(timeout time.Duration) (RawEvent, bool, error) {
	fds := []unix.PollFd{{Fd: int32(s.conn.Fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return RawEvent{}, false, nil
		}
		return RawEvent{}, false, fmt.Errorf("poll netlink: %w", err)
	}
	if n == 0 {
		return RawEvent{}, false, nil
	}

	uevent, err := s.conn.ReadUEvent()
	if err != nil {
		return RawEvent{}, false, fmt.Errorf("read uevent: %w", err)
	}
	if !s.matcher.Evaluate(*uevent) {
		return RawEvent{}, false, nil
	}
	return RawEvent{Action: string(uevent.Action), Env: uevent.Env}, true, nil
}

func (s *netlinkSource) Close() error {
	return s.conn.Close()
}

type crawlerEnumerator struct {
	root string
}

func newEnumerator(root string) Enumerator {
	if root == "" {
		root = sysfsMount
	}
	return crawlerEnumerator{root: root}
}

// Enumerate 遍历内核 /sys/devices 下的 uevent 文件。
// sysfs 的 uevent 不含 DEVPATH 和 ID_* 属性，DEVPATH 由 KObj 推出，其余属性由 Reader 从 sysfs 读取。
func (e crawlerEnumerator) Enumerate() ([]RawEvent, error) {
	queue := make(chan crawler.Device)
	errs := make(chan error)
	quit := crawler.ExistingDevices(queue, errs, nil)
	defer close(quit)

	var out []RawEvent
	for {
		select {
		case dev, ok := <-queue:
			if !ok {
				return out, nil
			}
			if raw, ok := e.toRawEvent(dev); ok {
				out = append(out, raw)
			}
		case err := <-errs:
			return out, fmt.Errorf("enumerate usb devices: %w", err)
		}
	}
}

// toRawEvent crawler 总是遍历 /sys；root 不是 /sys 时（例如容器中挂载的宿主机 sysfs），
// 只保留在 root 下同样存在的设备，避免 Reader 读取不存在的路径
func (e crawlerEnumerator) toRawEvent(dev crawler.Device) (RawEvent, bool) {
	if dev.Env["DEVTYPE"] != "usb_device" {
		return RawEvent{}, false
	}
	if sub, ok := dev.Env["SUBSYSTEM"]; ok && sub != "usb" {
		return RawEvent{}, false
	}
	devPath := strings.TrimPrefix(dev.KObj, sysfsMount)
	if e.root != sysfsMount {
		if _, err := os.Stat(filepath.Join(e.root, devPath)); err != nil {
			return RawEvent{}, false
		}
	}

	env := make(map[string]string, len(dev.Env)+1)
	for k, v := range dev.Env {
		env[k] = v
	}
	env["DEVPATH"] = devPath
	return RawEvent{Action: "add", Env: env}, true
}

package model

import (
	"fmt"
	"strings"
)

// Identity 设备的稳定标识，跨插拔周期不变
type Identity string

const (
	serialPrefix = "SERIAL:"
	pathPrefix   = "PATH:"

	UnknownName = "Unknown"
	UnknownID   = "----"
)

// DeviceClass 接口类别汇总 (见 analysis.Classify)
type DeviceClass struct {
	Kind       string   // "storage", "hid", "hub", "composite", "other", "unknown"
	Interfaces []string // bInterfaceClass, e.g. ["08", "03"]
	Suspicious bool     // 同时具有 HID 与存储接口
}

// DeviceSnapshot 某一时刻的 USB 设备快照，构造后不再修改
type DeviceSnapshot struct {
	SysPath string // /sys/devices/pci0000:00/.../1-2.3
	SysName string // 拓扑端口路径, e.g. 1-2.3
	DevPath string // 内核 DEVPATH
	DevNode string // /dev/bus/usb/001/005

	Vendor    string
	Model     string
	Serial    string // 可能为空
	VendorID  string
	ProductID string
	BusNum    string
	DevNum    string

	Speed         Speed
	Version       string
	MaxPower      string
	NumInterfaces string
	Class         DeviceClass

	ForcedIdentity Identity // 非空时覆盖计算出的身份
}

// WithIdentity 返回带有强制身份的副本
func (d DeviceSnapshot) WithIdentity(id Identity) DeviceSnapshot {
	d.ForcedIdentity = id
	return d
}

// FriendlyName 厂商 + 型号，均未知时退化为 "USB Device (vid:pid)"
func (d DeviceSnapshot) FriendlyName() string {
	name := strings.TrimSpace(d.Vendor + " " + d.Model)
	if name == UnknownName+" "+UnknownName {
		name = fmt.Sprintf("USB Device (%s:%s)", d.VendorID, d.ProductID)
	}
	return strings.ReplaceAll(name, "_", " ")
}

// BusLabel e.g. "001-1-2.3"
func (d DeviceSnapshot) BusLabel() string {
	return d.BusNum + "-" + d.SysName
}

func (d DeviceSnapshot) String() string {
	return fmt.Sprintf("%s [%s]", d.FriendlyName(), d.SysName)
}

// SerialIdentity / PathIdentity 构造两种身份
func SerialIdentity(serial string) Identity {
	return Identity(serialPrefix + serial)
}

func PathIdentity(vendorID, productID, sysName string) Identity {
	return Identity(pathPrefix + vendorID + ":" + productID + ":" + sysName)
}

// IsSerial 是否基于硬件序列号 (端口无关)
func (id Identity) IsSerial() bool {
	return strings.HasPrefix(string(id), serialPrefix)
}

// DeviceListing ListDevices 的返回项
type DeviceListing struct {
	Identity Identity
	Device   DeviceSnapshot
	KnownMax int  // 历史最高速率 Mbps
	Known    bool // 是否曾被监控过
}

package model

import (
	"math"
	"strconv"
	"strings"
)

const notAvailable = "N/A"

// Speed 从 sysfs "speed" 属性解析出的协商链路速率
type Speed struct {
	Raw   string
	Mbps  int
	Known bool
}

// ParseSpeed 解析原始速率字符串；非数字视为未知，不会报错。
// 低速设备内核报告 "1.5"，向下取整为 1。
func ParseSpeed(raw string) Speed {
	raw = strings.TrimSpace(raw)
	s := Speed{Raw: raw}
	if raw == "" || raw == notAvailable {
		return s
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	s.Mbps = int(f)
	s.Known = true
	return s
}

// SpeedOf 由整数 Mbps 构造已知速率
func SpeedOf(mbps int) Speed {
	return Speed{Raw: strconv.Itoa(mbps), Mbps: mbps, Known: true}
}

// String 人类可读的速率, e.g. "5 Gbps"
func (s Speed) String() string {
	if s.Raw == "" || s.Raw == notAvailable {
		return UnknownName
	}
	if !s.Known {
		return s.Raw
	}
	return FormatMbps(s.Mbps)
}

// Label USB 市场名称，未知返回 ""
func (s Speed) Label() string {
	if !s.Known {
		return ""
	}
	return SpeedLabel(s.Mbps)
}

var speedNames = map[int]struct{ text, label string }{
	1:     {"1.5 Mbps", "USB 1.1 Low Speed"},
	12:    {"12 Mbps", "USB 1.1 Full Speed"},
	480:   {"480 Mbps", "USB 2.0 High Speed"},
	5000:  {"5 Gbps", "USB 3.2 Gen 1 (SuperSpeed)"},
	10000: {"10 Gbps", "USB 3.2 Gen 2 (SuperSpeed+)"},
	20000: {"20 Gbps", "USB 3.2 Gen 2x2 (SuperSpeed+ 20G)"},
	40000: {"40 Gbps", "USB4 Gen 3x2"},
	80000: {"80 Gbps", "USB4 Gen 4 (USB4 v2)"},
}

func FormatMbps(mbps int) string {
	if n, ok := speedNames[mbps]; ok {
		return n.text
	}
	if mbps >= 1000 {
		return strconv.FormatFloat(float64(mbps)/1000, 'g', -1, 64) + " Gbps"
	}
	return strconv.Itoa(mbps) + " Mbps"
}

func SpeedLabel(mbps int) string {
	return speedNames[mbps].label
}

// VersionLabel sysfs "version" (协议版本, 不一定等于速率) 到友好名称
func VersionLabel(version string) string {
	v := strings.TrimSpace(version)
	if v == "" || v == notAvailable {
		return UnknownName
	}
	for _, p := range []struct{ prefix, label string }{
		{"1.1", "USB 1.1"},
		{"2.0", "USB 2.0"},
		{"2.1", "USB 2.1"},
		{"3.0", "USB 3.0"},
		{"3.1", "USB 3.1"},
		{"3.2", "USB 3.2"},
		{"4.0", "USB4"},
	} {
		if strings.HasPrefix(v, p.prefix) {
			return p.label
		}
	}
	return "USB " + v
}

package analysis

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/Hara602/cordID/internal/model"
)

const (
	classHID     = "03"
	classStorage = "08"
	classHub     = "09"
)

// Classify 汇总 USB 设备各接口的 bInterfaceClass。
// 同时拥有 08(存储) 和 03(HID) 接口的设备标记为 Suspicious（可能是 BadUSB），只做提示。
func Classify(sysPath string) model.DeviceClass {
	files, err := os.ReadDir(sysPath)
	if err != nil {
		return model.DeviceClass{Kind: "unknown"}
	}

	var classes []string
	for _, f := range files {
		// 遍历接口目录，例如 1-1:1.0
		if !strings.Contains(f.Name(), ":") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(sysPath, f.Name(), "bInterfaceClass"))
		if err != nil {
			continue
		}
		classes = append(classes, strings.TrimSpace(string(content)))
	}
	classes = lo.Uniq(classes)
	sort.Strings(classes)

	hasStorage := lo.Contains(classes, classStorage)
	hasHID := lo.Contains(classes, classHID)

	c := model.DeviceClass{Interfaces: classes}
	switch {
	case hasStorage && hasHID:
		c.Kind = "composite"
		c.Suspicious = true
	case hasStorage:
		c.Kind = "storage"
	case hasHID:
		c.Kind = "hid"
	case lo.Contains(classes, classHub):
		c.Kind = "hub"
	case len(classes) == 0:
		c.Kind = "unknown"
	default:
		c.Kind = "other"
	}
	return c
}

package sysutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ReadAttr 读取 sysfs 属性文件，设备已拔出或属性不存在时 ok=false
func ReadAttr(dir, attr string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}

// FindUSBRoot 向上回溯找到包含 idVendor 的目录（即 USB Device 根目录）
func FindUSBRoot(path string) (string, bool) {
	dir := path
	// 最多 10 层，通常 USB 设备在 sysfs 树的上层
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(dir, "idVendor")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir || parent == "/" || parent == "." {
			break
		}
		dir = parent
	}
	return path, false
}

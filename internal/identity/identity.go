// Package identity 计算 USB 设备的稳定身份。
//
// 序列号优先：序列号是硬件唯一且与端口无关的；没有序列号时退化为
// vid:pid + 拓扑端口路径，只在同一个物理端口上唯一。
package identity

import (
	"strings"

	"github.com/Hara602/cordID/internal/model"
)

// Of 纯函数，无隐藏状态
func Of(s model.DeviceSnapshot) model.Identity {
	if s.ForcedIdentity != "" {
		return s.ForcedIdentity
	}
	if serial := strings.TrimSpace(s.Serial); serial != "" {
		return model.SerialIdentity(serial)
	}
	return model.PathIdentity(s.VendorID, s.ProductID, s.SysName)
}

// ResolveOnRemoval 用于 remove/unbind：设备已拔出时 serial 等属性通常读不到，
// 优先使用 add 时记录在 pathMap 中的身份；没有记录时（监控开始前就已存在
// 且未被扫描到）退回到重新计算的身份。
func ResolveOnRemoval(s model.DeviceSnapshot, pathMap map[string]model.Identity) model.Identity {
	if id, ok := pathMap[s.SysPath]; ok {
		return id
	}
	return Of(s)
}

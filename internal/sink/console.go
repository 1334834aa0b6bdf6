// Package sink 事件消费者：控制台日志、MQTT 发布、InfluxDB 时序写入。
// 全部实现 dispatch.Consumer，在 dispatcher 的投递 goroutine 中被调用。
package sink

import (
	"go.uber.org/zap"

	"github.com/Hara602/cordID/internal/history"
	"github.com/Hara602/cordID/internal/model"
)

// Console 把事件写成面向操作员的日志
type Console struct {
	log *zap.Logger
}

func NewConsole(log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	return &Console{log: log}
}

func (c *Console) OnDeviceEvent(kind model.EventKind, ev model.DeviceEvent) {
	dev := ev.Device
	switch kind {
	case model.EventAdd:
		c.log.Info("✅ USB Connected",
			zap.String("device", ev.Name),
			zap.String("stable_id", string(ev.Identity)),
			zap.String("speed", dev.Speed.String()),
			zap.String("link", dev.Speed.Label()),
			zap.String("version", model.VersionLabel(dev.Version)),
			zap.String("bus", dev.BusLabel()),
			zap.String("vid", dev.VendorID),
			zap.String("pid", dev.ProductID),
			zap.String("type", dev.Class.Kind),
		)
		// 同时具有 HID 与存储接口
		if dev.Class.Suspicious {
			c.log.Error("🚨 Composite HID+storage device", zap.String("stable_id", string(ev.Identity)),
				zap.Strings("interfaces", dev.Class.Interfaces))
		}
	case model.EventRemove:
		c.log.Info("❌ USB Removed", zap.String("device", ev.Name), zap.String("stable_id", string(ev.Identity)))
	default:
		c.log.Info("🔄 USB "+kind.LogName(),
			zap.String("device", ev.Name),
			zap.String("stable_id", string(ev.Identity)),
			zap.String("speed", dev.Speed.String()),
		)
	}

	switch {
	case ev.Health.IsDowngraded:
		c.log.Warn("⚠️ Link speed downgrade",
			zap.String("device", ev.Name),
			zap.String("detail", history.DowngradeMessage(dev.Speed, ev.Health.KnownMax)),
		)
	case ev.Health.IsNewMax:
		c.log.Debug("New maximum link speed", zap.String("stable_id", string(ev.Identity)),
			zap.String("speed", model.FormatMbps(ev.Health.KnownMax)))
	}
}

package sink

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/Hara602/cordID/internal/config"
	"github.com/Hara602/cordID/internal/model"
)

const (
	linkMeasurement       = "usb_link"
	millisecondsPerSecond = 1000
)

// InfluxWriter 为每次已知速率的观测写入一个 usb_link 点，便于观察线缆随时间的退化
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// ConnectInflux 未启用时返回 ErrDisabled
func ConnectInflux(cfg config.InfluxDBConfig, log *zap.Logger) (*InfluxWriter, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = zap.NewNop()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Warn("InfluxDB write failed", zap.Error(err))
		}
	}()
	return &InfluxWriter{client: client, writeAPI: writeAPI}, nil
}

func (w *InfluxWriter) OnDeviceEvent(_ model.EventKind, ev model.DeviceEvent) {
	if p, ok := linkPoint(ev); ok {
		w.writeAPI.WritePoint(p)
	}
}

// Close 刷新缓冲后关闭
func (w *InfluxWriter) Close() error {
	w.writeAPI.Flush()
	w.client.Close()
	return nil
}

// linkPoint 速率未观测到的事件不产生数据点
func linkPoint(ev model.DeviceEvent) (*write.Point, bool) {
	if !ev.Health.Observed {
		return nil, false
	}
	tags := map[string]string{
		"stable_id": string(ev.Identity),
		"vid":       ev.Device.VendorID,
		"pid":       ev.Device.ProductID,
		"bus":       ev.Device.BusLabel(),
		"event":     ev.Kind.String(),
	}
	fields := map[string]interface{}{
		"speed_mbps":     ev.Device.Speed.Mbps,
		"max_speed_mbps": ev.Health.KnownMax,
		"downgraded":     ev.Health.IsDowngraded,
		"device_name":    ev.Name,
	}
	return write.NewPoint(linkMeasurement, tags, fields, ev.Timestamp), true
}

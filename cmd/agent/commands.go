package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hara602/cordID/internal/config"
	"github.com/Hara602/cordID/internal/dispatch"
	"github.com/Hara602/cordID/internal/model"
	"github.com/Hara602/cordID/internal/monitor"
	"github.com/Hara602/cordID/internal/sink"
	"github.com/Hara602/cordID/internal/store"
	"github.com/Hara602/cordID/internal/sysutil"
	"github.com/Hara602/cordID/internal/watcher"
)

type closer interface{ Close() error }

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	if p := c.String(flagHistory); p != "" {
		cfg.Storage.Path = p
	}
	return cfg, nil
}

// openHistory 无法解析的历史文件被保留为 .bak，从空历史开始
func openHistory(cfg config.StorageConfig) (store.Store, *model.Document, error) {
	st, doc, backup, err := store.OpenAndLoad(cfg)
	if err != nil {
		return nil, nil, err
	}
	if backup != "" {
		sysutil.Log.Warn("History file is unreadable, starting with empty history",
			zap.String("path", cfg.Path), zap.String("backup", backup))
	}
	return st, doc, nil
}

func runMonitor(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	sysutil.InitLogger(cfg.Logging)
	defer sysutil.Log.Sync() //nolint:errcheck

	if os.Geteuid() != 0 {
		sysutil.Log.Warn("Not running as root; some sysfs attributes may be unreadable")
	}
	sysutil.Log.Info("🔌 Cord ID Monitor Starting...", zap.String("history", cfg.Storage.Path))

	st, doc, err := openHistory(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	src, err := watcher.New()
	if err != nil {
		return multierr.Append(fmt.Errorf("open usb event source: %w", err), st.Close())
	}

	d := dispatch.New(sysutil.Log)
	d.Subscribe(sink.NewConsole(sysutil.Log))
	sinks := attachSinks(cfg, d)

	mon := monitor.New(monitor.Options{
		Source:       src,
		Enumerator:   watcher.NewEnumerator(cfg.Monitor.SysfsRoot),
		Reader:       watcher.NewReader(cfg.Monitor.SysfsRoot),
		Store:        st,
		Dispatcher:   d,
		Logger:       sysutil.Log,
		PollTimeout:  cfg.Monitor.PollTimeout,
		ErrorBackoff: cfg.Monitor.ErrorBackoff,
		ScanExisting: cfg.Monitor.ScanExisting,
	})
	mon.Load(doc)
	sysutil.LogSugar.Infof("Loaded history: %d devices, %d events", len(doc.DeviceRegistry), len(doc.EventLog))

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		sysutil.Log.Info("Shutting down...")
		mon.Stop()
		return nil
	})
	err = g.Wait()
	sysutil.Log.Info("Monitoring stopped", zap.Int("devices_present", len(mon.Present())))

	// 先排空 dispatcher，再关闭消费者和存储
	d.Close()
	err = multierr.Append(err, src.Close())
	for _, s := range sinks {
		err = multierr.Append(err, s.Close())
	}
	return multierr.Append(err, st.Close())
}

// attachSinks 连接失败的可选消费者只记录警告，不影响监控
func attachSinks(cfg *config.Config, d *dispatch.Dispatcher) []closer {
	var out []closer

	if pub, err := sink.ConnectMQTT(cfg.MQTT, sysutil.Log); err == nil {
		d.Subscribe(pub)
		out = append(out, pub)
		sysutil.Log.Info("Publishing events to MQTT", zap.String("host", cfg.MQTT.Host))
	} else if !errors.Is(err, sink.ErrDisabled) {
		sysutil.Log.Warn("MQTT unavailable", zap.Error(err))
	}

	if w, err := sink.ConnectInflux(cfg.InfluxDB, sysutil.Log); err == nil {
		d.Subscribe(w)
		out = append(out, w)
		sysutil.Log.Info("Writing link speed to InfluxDB", zap.String("url", cfg.InfluxDB.URL))
	} else if !errors.Is(err, sink.ErrDisabled) {
		sysutil.Log.Warn("InfluxDB unavailable", zap.Error(err))
	}
	return out
}

func runList(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	sysutil.InitLogger(cfg.Logging)

	st, doc, err := openHistory(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer st.Close()

	mon := monitor.New(monitor.Options{
		Enumerator: watcher.NewEnumerator(cfg.Monitor.SysfsRoot),
		Reader:     watcher.NewReader(cfg.Monitor.SysfsRoot),
		Logger:     sysutil.Log,
	})
	mon.Load(doc)

	devices, err := mon.ListDevices()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, renderDevices(devices))
	return nil
}

func runHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	sysutil.InitLogger(cfg.Logging)

	st, doc, err := openHistory(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer st.Close()

	fmt.Fprintln(c.App.Writer, renderRegistry(doc, timeNow()))
	fmt.Fprintln(c.App.Writer, renderEvents(doc.EventLog, c.Int(flagLimit)))
	return nil
}

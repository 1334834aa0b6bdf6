// Package monitor 是事件关联引擎：消费 udev 事件，构建快照，解析稳定身份，
// 维护 path->identity 映射、在线设备缓存、速率历史、登记表和事件日志，
// 然后把规范化的事件交给 dispatcher。
//
// 只有 Run 所在的 goroutine 修改这些状态；ListDevices/State 可以在其他
// goroutine 并发调用，所有访问由同一把锁串行化。
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Hara602/cordID/internal/dispatch"
	"github.com/Hara602/cordID/internal/history"
	"github.com/Hara602/cordID/internal/identity"
	"github.com/Hara602/cordID/internal/model"
	"github.com/Hara602/cordID/internal/recorder"
	"github.com/Hara602/cordID/internal/store"
	"github.com/Hara602/cordID/internal/watcher"
)

const (
	DefaultPollTimeout  = time.Second
	DefaultErrorBackoff = time.Second

	removedSpeed = "-"
)

// Options 依赖注入；Source 只有 Run 需要，Enumerator 只有扫描和 ListDevices 需要
type Options struct {
	Source     watcher.BusSource
	Enumerator watcher.Enumerator
	Reader     *watcher.Reader
	Store      store.Store // nil: 不持久化
	Dispatcher *dispatch.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger

	PollTimeout  time.Duration
	ErrorBackoff time.Duration
	ScanExisting bool
}

type Monitor struct {
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	pathMap  map[string]model.Identity
	cache    map[model.Identity]model.DeviceSnapshot
	tracker  *history.Tracker
	recorder *recorder.Recorder

	running  atomic.Bool
	stopping atomic.Bool
}

func New(opts Options) *Monitor {
	if opts.Reader == nil {
		opts.Reader = watcher.NewReader("")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.ErrorBackoff < 0 {
		opts.ErrorBackoff = DefaultErrorBackoff
	}
	return &Monitor{
		opts:     opts,
		log:      opts.Logger,
		pathMap:  make(map[string]model.Identity),
		cache:    make(map[model.Identity]model.DeviceSnapshot),
		tracker:  history.NewTracker(),
		recorder: recorder.New(),
	}
}

// Load 恢复持久化的历史，在 Run 之前调用
func (m *Monitor) Load(doc *model.Document) {
	if doc == nil {
		return
	}
	doc.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker.Load(doc.DeviceHistory)
	m.recorder.Load(doc)
}

// Run 阻塞直到 Stop 或 ctx 取消。每次等待最多 PollTimeout，
// 单个事件出错只记录日志并跳过，随后短暂退避，循环本身不会因错误退出。
func (m *Monitor) Run(ctx context.Context) error {
	if m.opts.Source == nil {
		return ErrNoSource
	}
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)
	m.stopping.Store(false)

	if m.opts.ScanExisting {
		m.scanExisting()
	}
	m.log.Info("Cord ID monitoring started", zap.Duration("poll_timeout", m.opts.PollTimeout))

	for !m.stopping.Load() {
		if ctx.Err() != nil {
			break
		}

		raw, ok, err := m.opts.Source.Next(m.opts.PollTimeout)
		if err != nil {
			m.log.Error("Error in monitor loop", zap.Error(err))
			m.backoff(ctx)
			continue
		}
		if !ok {
			continue
		}
		if _, err := m.Handle(raw); err != nil {
			m.log.Error("Failed to process bus event", zap.String("action", raw.Action), zap.Error(err))
			m.backoff(ctx)
		}
	}

	m.log.Info("Cord ID monitoring stopped")
	return nil
}

// Stop 协作式停止，Run 最多在一个 PollTimeout 后返回；之后可以再次 Run
func (m *Monitor) Stop() {
	m.stopping.Store(true)
}

func (m *Monitor) backoff(ctx context.Context) {
	if m.opts.ErrorBackoff == 0 {
		return
	}
	timer := m.opts.Clock.Timer(m.opts.ErrorBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// scanExisting 在处理新事件前，先扫描已存在的设备，
// 这样监控开始前就插着的设备拔出时也能关联到正确的身份。不写事件日志。
func (m *Monitor) scanExisting() {
	if m.opts.Enumerator == nil {
		return
	}
	raws, err := m.opts.Enumerator.Enumerate()
	if err != nil {
		m.log.Warn("Failed to scan existing USB devices", zap.Error(err))
	}
	snaps := m.readAll(raws)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		id := identity.Of(s)
		m.pathMap[s.SysPath] = id
		m.cache[id] = s
	}
	m.log.Info("Found existing USB devices", zap.Int("count", len(snaps)))
}

// Handle 处理单个总线事件，返回分发出去的事件
func (m *Monitor) Handle(raw watcher.RawEvent) (model.DeviceEvent, error) {
	kind := model.ParseEventKind(raw.Action)
	snap, err := m.opts.Reader.Read(raw.Env)
	if err != nil {
		return model.DeviceEvent{}, fmt.Errorf("%s event: %w", raw.Action, err)
	}
	now := m.opts.Clock.Now()

	m.mu.Lock()
	id, snap := m.correlate(kind, snap)

	var health model.LinkHealth
	if kind.Present() {
		health = m.tracker.Observe(id, snap.Speed)
	}

	name := m.recorder.ResolveName(id, snap.FriendlyName())
	m.recorder.UpsertRegistry(id, name, snap.Speed, now)

	speed := snap.Speed.String()
	if kind == model.EventRemove {
		speed = removedSpeed
	}
	m.recorder.AppendLog(model.LogEntry{
		Time:       now,
		Event:      kind.LogName(),
		DeviceName: name,
		Speed:      speed,
		Bus:        snap.BusLabel(),
		Version:    snap.Version,
		Identity:   id,
	})
	doc := m.exportLocked()
	m.mu.Unlock()

	ev := model.DeviceEvent{
		ID:        uuid.New(),
		Kind:      kind,
		Action:    raw.Action,
		Identity:  id,
		Name:      name,
		Device:    snap,
		Health:    health,
		Timestamp: now,
	}
	m.log.Info("Monitor event",
		zap.String("action", raw.Action),
		zap.String("sys_name", snap.SysName),
		zap.String("stable_id", string(id)),
		zap.String("speed", snap.Speed.String()),
	)

	m.persist(doc)
	if m.opts.Dispatcher != nil {
		m.opts.Dispatcher.Dispatch(ev)
	}
	return ev, nil
}

// correlate 维护 pathMap 和 cache。调用方持有锁。
// path 被内核复用给另一个设备时会被当作同一身份，这是已知的近似。
func (m *Monitor) correlate(kind model.EventKind, snap model.DeviceSnapshot) (model.Identity, model.DeviceSnapshot) {
	switch kind {
	case model.EventAdd:
		id := identity.Of(snap)
		m.pathMap[snap.SysPath] = id
		m.cache[id] = snap
		return id, snap
	case model.EventRemove, model.EventUnbind:
		id := identity.ResolveOnRemoval(snap, m.pathMap)
		snap = snap.WithIdentity(id)
		// unbind 保留映射，之后 bind 时仍能关联
		if kind == model.EventRemove {
			delete(m.pathMap, snap.SysPath)
			delete(m.cache, id)
		}
		return id, snap
	default:
		return identity.Of(snap), snap
	}
}

func (m *Monitor) persist(doc *model.Document) {
	if m.opts.Store == nil {
		return
	}
	// 失败只记录，内存状态仍然有效，下一个事件会重写整个文档
	if err := m.opts.Store.Save(doc); err != nil {
		m.log.Error("Failed to save history", zap.Error(err))
	}
}

func (m *Monitor) exportLocked() *model.Document {
	return &model.Document{
		DeviceHistory:  m.tracker.Export(),
		EventLog:       m.recorder.Log(),
		DeviceRegistry: m.recorder.Registry(),
	}
}

// State 返回历史、日志和登记表的副本
func (m *Monitor) State() *model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exportLocked()
}

// Present 当前缓存中的在线设备（副本），按端口路径排序
func (m *Monitor) Present() []model.DeviceSnapshot {
	m.mu.Lock()
	out := make([]model.DeviceSnapshot, 0, len(m.cache))
	for _, s := range m.cache {
		out = append(out, s)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SysName < out[j].SysName })
	return out
}

// ListDevices 重新枚举（不依赖缓存），为每个设备标注稳定身份和历史最高速率
func (m *Monitor) ListDevices() ([]model.DeviceListing, error) {
	if m.opts.Enumerator == nil {
		return nil, ErrNoEnumerator
	}
	raws, err := m.opts.Enumerator.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	snaps := m.readAll(raws)

	listings := make([]model.DeviceListing, 0, len(snaps))
	m.mu.Lock()
	for _, s := range snaps {
		id := identity.Of(s)
		maxMbps, known := m.tracker.Max(id)
		listings = append(listings, model.DeviceListing{Identity: id, Device: s, KnownMax: maxMbps, Known: known})
	}
	m.mu.Unlock()

	sort.Slice(listings, func(i, j int) bool { return listings[i].Device.SysName < listings[j].Device.SysName })
	return listings, nil
}

func (m *Monitor) readAll(raws []watcher.RawEvent) []model.DeviceSnapshot {
	snaps := make([]model.DeviceSnapshot, 0, len(raws))
	for _, raw := range raws {
		s, err := m.opts.Reader.Read(raw.Env)
		if err != nil {
			m.log.Debug("Skipping unreadable device", zap.Error(err))
			continue
		}
		snaps = append(snaps, s)
	}
	return snaps
}

// Package recorder 维护设备登记表和只追加的事件日志。
package recorder

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Hara602/cordID/internal/model"
)

const unresolvedIDs = model.UnknownID + ":" + model.UnknownID

// Entry 内存中的登记项，速率为集合
type Entry struct {
	Name     string
	Speeds   map[int]struct{}
	LastSeen time.Time
}

// Recorder 非并发安全，由 monitor 的锁保护
type Recorder struct {
	registry map[model.Identity]*Entry
	log      []model.LogEntry
}

func New() *Recorder {
	return &Recorder{registry: make(map[model.Identity]*Entry)}
}

// Load 从持久化文档恢复
func (r *Recorder) Load(doc *model.Document) {
	r.registry = make(map[model.Identity]*Entry, len(doc.DeviceRegistry))
	for id, rec := range doc.DeviceRegistry {
		e := &Entry{Name: rec.Name, Speeds: make(map[int]struct{}, len(rec.Speeds)), LastSeen: rec.LastSeen}
		for _, s := range rec.Speeds {
			e.Speeds[s] = struct{}{}
		}
		r.registry[id] = e
	}
	r.log = append([]model.LogEntry(nil), doc.EventLog...)
}

// IsPlaceholder 名称中含有未解析的 vid:pid 或 "Unknown" 单词
func IsPlaceholder(name string) bool {
	if strings.TrimSpace(name) == "" || strings.Contains(name, unresolvedIDs) {
		return true
	}
	return lo.Contains(strings.Fields(name), model.UnknownName)
}

// ResolveName remove 事件的快照通常没有可用名称，用登记表中的名称代替
func (r *Recorder) ResolveName(id model.Identity, candidate string) string {
	if !IsPlaceholder(candidate) {
		return candidate
	}
	if e, ok := r.registry[id]; ok {
		return e.Name
	}
	return candidate
}

// UpsertRegistry 首次出现时创建；名称只会向“更明确”方向更新
func (r *Recorder) UpsertRegistry(id model.Identity, candidateName string, speed model.Speed, ts time.Time) {
	e, ok := r.registry[id]
	if !ok {
		e = &Entry{Name: candidateName, Speeds: make(map[int]struct{})}
		r.registry[id] = e
	} else if !IsPlaceholder(candidateName) {
		e.Name = candidateName
	}
	e.LastSeen = ts
	if speed.Known {
		e.Speeds[speed.Mbps] = struct{}{}
	}
}

// AppendLog 无条件追加，连接与断开是两条独立记录
func (r *Recorder) AppendLog(entry model.LogEntry) {
	r.log = append(r.log, entry)
}

// Log 返回副本
func (r *Recorder) Log() []model.LogEntry {
	return append([]model.LogEntry(nil), r.log...)
}

// Registry 返回可持久化的副本
func (r *Recorder) Registry() map[model.Identity]model.RegistryRecord {
	out := make(map[model.Identity]model.RegistryRecord, len(r.registry))
	for id, e := range r.registry {
		out[id] = toRecord(e)
	}
	return out
}

func toRecord(e *Entry) model.RegistryRecord {
	speeds := lo.Keys(e.Speeds)
	sort.Ints(speeds)
	return model.RegistryRecord{Name: e.Name, Speeds: speeds, LastSeen: e.LastSeen}
}

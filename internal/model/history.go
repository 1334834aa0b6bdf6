package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// legacyClockLayout 旧版本 history.json 只记录时分秒
const legacyClockLayout = "15:04:05"

// LogEntry 事件日志条目，只追加，不合并不删除
type LogEntry struct {
	Time       time.Time `json:"time"`
	Event      string    `json:"event"` // "Connected", "Disconnected", ...
	DeviceName string    `json:"device_name"`
	Speed      string    `json:"speed"`
	Bus        string    `json:"bus"`
	Version    string    `json:"version"`
	Identity   Identity  `json:"stable_id"`
}

// RegistryRecord 设备登记信息的持久化形式 (speeds 为集合，存为升序数组)
type RegistryRecord struct {
	Name     string    `json:"name"`
	Speeds   []int     `json:"speeds"`
	LastSeen time.Time `json:"last_seen"`
}

// ParseTimestamp 接受 RFC3339 或旧的 "HH:MM:SS"；后者日期未知，年份为 0
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(legacyClockLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}

// ClockOnly 时间来自旧文件，只有时分秒有效
func ClockOnly(t time.Time) bool {
	return t.Year() == 0
}

func (e *LogEntry) UnmarshalJSON(data []byte) error {
	type plain LogEntry
	aux := struct {
		*plain
		Time string `json:"time"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := ParseTimestamp(aux.Time)
	if err != nil {
		return err
	}
	e.Time = t
	return nil
}

func (r *RegistryRecord) UnmarshalJSON(data []byte) error {
	type plain RegistryRecord
	aux := struct {
		*plain
		LastSeen string `json:"last_seen"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := ParseTimestamp(aux.LastSeen)
	if err != nil {
		return err
	}
	r.LastSeen = t
	return nil
}

// Document 持久化文档，每个事件处理后整体重写
type Document struct {
	DeviceHistory  map[Identity]int            `json:"device_history"`
	EventLog       []LogEntry                  `json:"event_log"`
	DeviceRegistry map[Identity]RegistryRecord `json:"device_registry"`
}

func NewDocument() *Document {
	return &Document{
		DeviceHistory:  make(map[Identity]int),
		EventLog:       []LogEntry{},
		DeviceRegistry: make(map[Identity]RegistryRecord),
	}
}

// Normalize 补全缺失字段（旧文件或空文件）
func (d *Document) Normalize() *Document {
	if d.DeviceHistory == nil {
		d.DeviceHistory = make(map[Identity]int)
	}
	if d.EventLog == nil {
		d.EventLog = []LogEntry{}
	}
	if d.DeviceRegistry == nil {
		d.DeviceRegistry = make(map[Identity]RegistryRecord)
	}
	return d
}

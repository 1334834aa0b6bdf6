package main

import (
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Hara602/cordID/internal/model"
)

var timeNow = time.Now

func renderDevices(devices []model.DeviceListing) string {
	t := table.NewWriter()
	t.SetTitle("Connected USB devices")
	t.AppendHeader(table.Row{"Bus", "Device", "Stable ID", "Bound to", "Speed", "Best known", "Version", "Type"})
	for _, d := range devices {
		best := "-"
		if d.Known {
			best = model.FormatMbps(d.KnownMax)
			if d.Device.Speed.Known && d.Device.Speed.Mbps < d.KnownMax {
				best += " ⚠"
			}
		}
		t.AppendRow(table.Row{
			d.Device.BusLabel(),
			d.Device.FriendlyName(),
			string(d.Identity),
			boundTo(d.Identity),
			d.Device.Speed.String(),
			best,
			model.VersionLabel(d.Device.Version),
			d.Device.Class.Kind,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(devices)})
	return t.Render()
}

// boundTo 没有序列号的设备换一个端口就会被当作新设备
func boundTo(id model.Identity) string {
	if id.IsSerial() {
		return "serial"
	}
	return "port only"
}

// renderRegistry 按最近出现时间倒序
func renderRegistry(doc *model.Document, now time.Time) string {
	ids := make([]model.Identity, 0, len(doc.DeviceRegistry))
	for id := range doc.DeviceRegistry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return doc.DeviceRegistry[ids[i]].LastSeen.After(doc.DeviceRegistry[ids[j]].LastSeen)
	})

	t := table.NewWriter()
	t.SetTitle("Known devices")
	t.AppendHeader(table.Row{"Device", "Stable ID", "Max speed", "Seen at", "Last seen"})
	for _, id := range ids {
		rec := doc.DeviceRegistry[id]
		maxSpeed := "-"
		if mbps, ok := doc.DeviceHistory[id]; ok {
			maxSpeed = model.FormatMbps(mbps)
		}
		seenAt := make([]string, 0, len(rec.Speeds))
		for _, s := range rec.Speeds {
			seenAt = append(seenAt, model.FormatMbps(s))
		}
		t.AppendRow(table.Row{
			rec.Name,
			string(id),
			maxSpeed,
			strings.Join(seenAt, ", "),
			lastSeen(rec.LastSeen, now),
		})
	}
	return t.Render()
}

// renderEvents limit<=0 显示全部
func renderEvents(log []model.LogEntry, limit int) string {
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	t := table.NewWriter()
	t.SetTitle("Recent events")
	t.AppendHeader(table.Row{"Time", "Event", "Device", "Speed", "Bus", "Version", "Stable ID"})
	for _, e := range log {
		t.AppendRow(table.Row{
			eventTime(e.Time),
			e.Event,
			e.DeviceName,
			e.Speed,
			e.Bus,
			e.Version,
			string(e.Identity),
		})
	}
	return t.Render()
}

// 旧文件中的时间只有时分秒
func lastSeen(t, now time.Time) string {
	switch {
	case t.IsZero():
		return "-"
	case model.ClockOnly(t):
		return t.Format(time.TimeOnly)
	default:
		return humanize.RelTime(t, now, "ago", "from now")
	}
}

func eventTime(t time.Time) string {
	if model.ClockOnly(t) {
		return t.Format(time.TimeOnly)
	}
	return t.Local().Format(time.DateTime)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		raw       string
		wantKnown bool
		wantMbps  int
		wantText  string
		wantLabel string
	}{
		{"5000", true, 5000, "5 Gbps", "USB 3.2 Gen 1 (SuperSpeed)"},
		{"480", true, 480, "480 Mbps", "USB 2.0 High Speed"},
		{"1.5", true, 1, "1.5 Mbps", "USB 1.1 Low Speed"},
		{"2500", true, 2500, "2.5 Gbps", ""},
		{"100", true, 100, "100 Mbps", ""},
		{"N/A", false, 0, "Unknown", ""},
		{"", false, 0, "Unknown", ""},
		{"fast", false, 0, "fast", ""},
		{" 12\n", true, 12, "12 Mbps", "USB 1.1 Full Speed"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			s := ParseSpeed(tt.raw)
			assert.Equal(t, tt.wantKnown, s.Known)
			assert.Equal(t, tt.wantMbps, s.Mbps)
			assert.Equal(t, tt.wantText, s.String())
			assert.Equal(t, tt.wantLabel, s.Label())
		})
	}
}

func TestVersionLabel(t *testing.T) {
	assert.Equal(t, "USB 2.0", VersionLabel(" 2.00"))
	assert.Equal(t, "USB 3.2", VersionLabel("3.20"))
	assert.Equal(t, "USB4", VersionLabel("4.00"))
	assert.Equal(t, "USB 9.9", VersionLabel("9.9"))
	assert.Equal(t, "Unknown", VersionLabel("N/A"))
}

func TestFriendlyName(t *testing.T) {
	d := DeviceSnapshot{Vendor: "Acme_Corp", Model: "Widget", VendorID: "1234", ProductID: "abcd"}
	assert.Equal(t, "Acme Corp Widget", d.FriendlyName())

	d = DeviceSnapshot{Vendor: UnknownName, Model: UnknownName, VendorID: UnknownID, ProductID: UnknownID}
	assert.Equal(t, "USB Device (----:----)", d.FriendlyName())
}

func TestParseEventKind(t *testing.T) {
	assert.Equal(t, EventAdd, ParseEventKind("add"))
	assert.Equal(t, EventUnbind, ParseEventKind("unbind"))
	assert.Equal(t, EventIgnored, ParseEventKind("move"))
	assert.Equal(t, "Other", ParseEventKind("online").LogName())
	assert.True(t, EventBind.Present())
	assert.False(t, EventRemove.Present())
}

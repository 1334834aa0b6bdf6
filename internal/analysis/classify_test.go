package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeDevice(t *testing.T, classes map[string]string) string {
	t.Helper()
	dev := filepath.Join(t.TempDir(), "1-2")
	require.NoError(t, os.MkdirAll(dev, 0755))
	for iface, class := range classes {
		dir := filepath.Join(dev, iface)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bInterfaceClass"), []byte(class+"\n"), 0644))
	}
	return dev
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		classes    map[string]string
		wantKind   string
		suspicious bool
	}{
		{"storage", map[string]string{"1-2:1.0": "08"}, "storage", false},
		{"keyboard", map[string]string{"1-2:1.0": "03", "1-2:1.1": "03"}, "hid", false},
		{"badusb", map[string]string{"1-2:1.0": "08", "1-2:1.1": "03"}, "composite", true},
		{"hub", map[string]string{"1-2:1.0": "09"}, "hub", false},
		{"audio", map[string]string{"1-2:1.0": "01"}, "other", false},
		{"no interfaces", nil, "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(fakeDevice(t, tt.classes))
			assert.Equal(t, tt.wantKind, c.Kind)
			assert.Equal(t, tt.suspicious, c.Suspicious)
		})
	}
}

func TestClassify_MissingDevice(t *testing.T) {
	c := Classify(filepath.Join(t.TempDir(), "gone"))
	assert.Equal(t, "unknown", c.Kind)
	assert.Empty(t, c.Interfaces)
}

func TestClassify_DedupesInterfaces(t *testing.T) {
	c := Classify(fakeDevice(t, map[string]string{"1-2:1.0": "03", "1-2:1.1": "03"}))
	assert.Equal(t, []string{"03"}, c.Interfaces)
}

package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hara602/cordID/internal/model"
)

func TestObserve_Sequence(t *testing.T) {
	tr := NewTracker()

	h := tr.Observe("d1", model.SpeedOf(100))
	assert.True(t, h.Observed)
	assert.True(t, h.IsNewMax)
	assert.False(t, h.IsDowngraded)

	h = tr.Observe("d1", model.SpeedOf(50))
	assert.True(t, h.IsDowngraded)
	assert.False(t, h.IsNewMax)
	assert.Equal(t, 100, h.KnownMax)
	maxMbps, _ := tr.Max("d1")
	assert.Equal(t, 100, maxMbps)

	h = tr.Observe("d1", model.SpeedOf(200))
	assert.True(t, h.IsNewMax)
	assert.False(t, h.IsDowngraded)
	maxMbps, _ = tr.Max("d1")
	assert.Equal(t, 200, maxMbps)
}

func TestObserve_EqualSetsNoFlags(t *testing.T) {
	tr := NewTracker()
	tr.Observe("d1", model.SpeedOf(480))
	h := tr.Observe("d1", model.SpeedOf(480))
	assert.False(t, h.IsNewMax)
	assert.False(t, h.IsDowngraded)
	assert.Equal(t, 480, h.KnownMax)
}

func TestObserve_PartialRecoveryStillDowngraded(t *testing.T) {
	tr := NewTracker()
	tr.Observe("d1", model.SpeedOf(10000))
	tr.Observe("d1", model.SpeedOf(480))
	h := tr.Observe("d1", model.SpeedOf(5000))
	assert.True(t, h.IsDowngraded)
	assert.Equal(t, 10000, h.KnownMax)
}

func TestObserve_UnknownSpeedLeavesHistory(t *testing.T) {
	tr := NewTracker()
	h := tr.Observe("d1", model.ParseSpeed("N/A"))
	assert.Equal(t, model.LinkHealth{}, h)
	_, ok := tr.Max("d1")
	assert.False(t, ok)

	tr.Observe("d1", model.SpeedOf(5000))
	h = tr.Observe("d1", model.ParseSpeed("garbage"))
	assert.False(t, h.Observed)
	assert.False(t, h.IsDowngraded)
	assert.Equal(t, map[model.Identity]int{"d1": 5000}, tr.Export())
}

func TestLoadAndExportAreCopies(t *testing.T) {
	src := map[model.Identity]int{"SERIAL:A": 5000}
	tr := NewTracker()
	tr.Load(src)
	src["SERIAL:A"] = 1

	out := tr.Export()
	require.Equal(t, 5000, out["SERIAL:A"])
	out["SERIAL:A"] = 2
	maxMbps, _ := tr.Max("SERIAL:A")
	assert.Equal(t, 5000, maxMbps)
}

func TestDowngradeMessage(t *testing.T) {
	msg := DowngradeMessage(model.SpeedOf(480), 5000)
	assert.Equal(t, "Running at legacy USB 2.0 speeds. We have previously observed this device on your system connect at 5 Gbps (USB 3.2 Gen 1 (SuperSpeed)).", msg)

	msg = DowngradeMessage(model.SpeedOf(5000), 10000)
	assert.Contains(t, msg, "Running at 5 Gbps but")
}

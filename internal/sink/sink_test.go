package sink

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Hara602/cordID/internal/config"
	"github.com/Hara602/cordID/internal/model"
)

var at = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func downgradedAdd() model.DeviceEvent {
	return model.DeviceEvent{
		ID:       uuid.New(),
		Kind:     model.EventAdd,
		Action:   "add",
		Identity: "SERIAL:XYZ",
		Name:     "SanDisk Ultra",
		Device: model.DeviceSnapshot{
			SysName:   "2-1",
			BusNum:    "002",
			VendorID:  "0781",
			ProductID: "5581",
			Serial:    "XYZ",
			Speed:     model.SpeedOf(480),
			Version:   "3.20",
			Class:     model.DeviceClass{Kind: "storage", Interfaces: []string{"08"}},
		},
		Health:    model.LinkHealth{Observed: true, IsDowngraded: true, KnownMax: 5000},
		Timestamp: at,
	}
}

func TestConsole_LogsDowngradeAndSuspiciousClass(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := NewConsole(zap.New(core))

	ev := downgradedAdd()
	ev.Device.Class = model.DeviceClass{Kind: "composite", Interfaces: []string{"03", "08"}, Suspicious: true}
	c.OnDeviceEvent(ev.Kind, ev)

	assert.Equal(t, 1, logs.FilterMessage("✅ USB Connected").Len())
	assert.Equal(t, 1, logs.FilterMessage("🚨 Composite HID+storage device").Len())

	warn := logs.FilterMessage("⚠️ Link speed downgrade").All()
	require.Len(t, warn, 1)
	assert.Contains(t, warn[0].ContextMap()["detail"], "legacy USB 2.0")

	ev = model.DeviceEvent{Kind: model.EventRemove, Identity: "SERIAL:XYZ", Name: "SanDisk Ultra"}
	c.OnDeviceEvent(ev.Kind, ev)
	assert.Equal(t, 1, logs.FilterMessage("❌ USB Removed").Len())
	assert.Equal(t, 1, logs.FilterMessage("⚠️ Link speed downgrade").Len())
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient 只实现 Publish/IsConnected/Disconnect，其余方法调用会 panic
type fakeClient struct {
	pahomqtt.Client
	mu           sync.Mutex
	msgs         []published
	disconnected bool
}

func (f *fakeClient) IsConnected() bool { return true }

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	f.msgs = append(f.msgs, published{topic: topic, qos: qos, retained: retained, payload: b})
	return doneToken{}
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func TestMQTTPublisher_PublishesEventJSON(t *testing.T) {
	fc := &fakeClient{}
	p := newMQTTPublisher(fc, config.MQTTConfig{TopicPrefix: "cordid", ClientID: "agent", QoS: 1}, zaptest.NewLogger(t))

	ev := downgradedAdd()
	p.OnDeviceEvent(ev.Kind, ev)
	require.NoError(t, p.Close())

	require.Len(t, fc.msgs, 2)
	msg := fc.msgs[0]
	assert.Equal(t, "cordid/events/add", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &body))
	assert.Equal(t, "Connected", body["event"])
	assert.Equal(t, "SERIAL:XYZ", body["stable_id"])
	assert.Equal(t, "480 Mbps", body["speed"])
	assert.EqualValues(t, 480, body["speed_mbps"])
	assert.EqualValues(t, 5000, body["max_speed_mbps"])
	assert.Equal(t, true, body["downgraded"])
	assert.Equal(t, "002-2-1", body["bus"])
	assert.Equal(t, "2026-05-04T09:30:00Z", body["timestamp"])
	assert.Equal(t, ev.ID.String(), body["id"])

	status := fc.msgs[1]
	assert.Equal(t, "cordid/status", status.topic)
	assert.True(t, status.retained)
	assert.Contains(t, string(status.payload), `"status":"offline"`)
	assert.True(t, fc.disconnected)
}

func TestMQTTPublisher_QoSClamp(t *testing.T) {
	p := newMQTTPublisher(&fakeClient{}, config.MQTTConfig{QoS: 7}, zap.NewNop())
	assert.Equal(t, byte(1), p.qos())
	p = newMQTTPublisher(&fakeClient{}, config.MQTTConfig{QoS: 2}, zap.NewNop())
	assert.Equal(t, byte(2), p.qos())
}

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(config.MQTTConfig{Host: "broker", Port: 8883, TLS: true, ClientID: "agent", Username: "u", Password: "p"})
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "ssl://broker:8883", opts.Servers[0].String())
	assert.Equal(t, "agent", opts.ClientID)
	assert.Equal(t, "u", opts.Username)
	assert.NotNil(t, opts.TLSConfig)
}

func TestDisabledSinks(t *testing.T) {
	_, err := ConnectMQTT(config.MQTTConfig{}, nil)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = ConnectInflux(config.InfluxDBConfig{}, nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestLinkPoint(t *testing.T) {
	p, ok := linkPoint(downgradedAdd())
	require.True(t, ok)
	assert.Equal(t, "usb_link", p.Name())
	assert.True(t, at.Equal(p.Time()))

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, "SERIAL:XYZ", tags["stable_id"])
	assert.Equal(t, "0781", tags["vid"])
	assert.Equal(t, "add", tags["event"])

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.EqualValues(t, 480, fields["speed_mbps"])
	assert.EqualValues(t, 5000, fields["max_speed_mbps"])
	assert.Equal(t, true, fields["downgraded"])

	_, ok = linkPoint(model.DeviceEvent{Kind: model.EventRemove})
	assert.False(t, ok)
}

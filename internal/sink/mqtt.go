package sink

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Hara602/cordID/internal/config"
	"github.com/Hara602/cordID/internal/model"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultKeepAlive         = 60 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	maxQoS                   = 2
)

// MQTTPublisher 把每个事件以 JSON 发布到 <prefix>/events/<kind>
type MQTTPublisher struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	log    *zap.Logger
}

// eventPayload MQTT 消息体
type eventPayload struct {
	ID         string `json:"id"`
	Event      string `json:"event"`
	StableID   string `json:"stable_id"`
	DeviceName string `json:"device_name"`
	Speed      string `json:"speed"`
	SpeedMbps  int    `json:"speed_mbps,omitempty"`
	MaxMbps    int    `json:"max_speed_mbps,omitempty"`
	Downgraded bool   `json:"downgraded"`
	Bus        string `json:"bus"`
	Version    string `json:"version"`
	VendorID   string `json:"vid"`
	ProductID  string `json:"pid"`
	Class      string `json:"class"`
	Timestamp  string `json:"timestamp"`
}

// ConnectMQTT 连接 broker 并发布在线状态；未启用时返回 ErrDisabled
func ConnectMQTT(cfg config.MQTTConfig, log *zap.Logger) (*MQTTPublisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts := buildClientOptions(cfg)
	opts.SetWill(statusTopic(cfg.TopicPrefix), statusPayload(cfg.ClientID, "offline"), 1, true)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn("MQTT connection lost", zap.Error(err))
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: mqtt timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p := newMQTTPublisher(client, cfg, log)
	client.Publish(statusTopic(cfg.TopicPrefix), p.qos(), true, statusPayload(cfg.ClientID, "online"))
	return p, nil
}

func newMQTTPublisher(client pahomqtt.Client, cfg config.MQTTConfig, log *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, cfg: cfg, log: log}
}

// buildClientOptions 根据配置生成 paho 连接参数
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

func (p *MQTTPublisher) OnDeviceEvent(kind model.EventKind, ev model.DeviceEvent) {
	payload, err := buildEventPayload(ev)
	if err != nil {
		p.log.Error("Failed to encode MQTT payload", zap.Error(err))
		return
	}
	topic := eventTopic(p.cfg.TopicPrefix, kind)
	token := p.client.Publish(topic, p.qos(), false, payload)

	// 不阻塞投递 goroutine
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			p.log.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
		}
	}()
}

// Close 发布正常下线状态后断开
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		token := p.client.Publish(statusTopic(p.cfg.TopicPrefix), p.qos(), true, statusPayload(p.cfg.ClientID, "offline"))
		token.WaitTimeout(time.Second)
	}
	p.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

func (p *MQTTPublisher) qos() byte {
	if p.cfg.QoS < 0 || p.cfg.QoS > maxQoS {
		return 1
	}
	return byte(p.cfg.QoS)
}

func eventTopic(prefix string, kind model.EventKind) string {
	return prefix + "/events/" + kind.String()
}

func statusTopic(prefix string) string {
	return prefix + "/status"
}

func statusPayload(clientID, status string) string {
	return fmt.Sprintf(`{"status":"%s","client_id":"%s","timestamp":"%s"}`,
		status, clientID, time.Now().UTC().Format(time.RFC3339))
}

func buildEventPayload(ev model.DeviceEvent) ([]byte, error) {
	p := eventPayload{
		ID:         ev.ID.String(),
		Event:      ev.Kind.LogName(),
		StableID:   string(ev.Identity),
		DeviceName: ev.Name,
		Speed:      ev.Device.Speed.String(),
		MaxMbps:    ev.Health.KnownMax,
		Downgraded: ev.Health.IsDowngraded,
		Bus:        ev.Device.BusLabel(),
		Version:    ev.Device.Version,
		VendorID:   ev.Device.VendorID,
		ProductID:  ev.Device.ProductID,
		Class:      ev.Device.Class.Kind,
		Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339),
	}
	if ev.Device.Speed.Known {
		p.SpeedMbps = ev.Device.Speed.Mbps
	}
	return json.Marshal(p)
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 根配置，从 YAML 加载，可被 CORDID_* 环境变量覆盖
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// StorageConfig 历史文件
type StorageConfig struct {
	// Backend: "auto" (按文件头判断), "json", "sqlite"
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// MonitorConfig 事件循环参数
type MonitorConfig struct {
	// PollTimeout 每次等待总线事件的上限，决定停止响应的延迟
	PollTimeout time.Duration `yaml:"poll_timeout"`
	// ErrorBackoff 处理出错后的等待，避免紧密错误循环
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	// SysfsRoot Reader 读取属性的 sysfs 挂载点。启动扫描仍遍历内核的 /sys/devices，
	// 只保留在 SysfsRoot 下同样存在的设备
	SysfsRoot string `yaml:"sysfs_root"`
	// ScanExisting 启动时扫描已连接设备以建立 path->identity 映射
	ScanExisting bool `yaml:"scan_existing"`
}

type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"` // "console" or "json"
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig Path 为空时只输出到 stdout
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLS         bool   `yaml:"tls"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// Load 读取配置文件；path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// DefaultHistoryPath ~/.config/cord_id_monitor/history.json
func DefaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), ".config")
	}
	return filepath.Join(dir, "cord_id_monitor", "history.json")
}

func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "auto",
			Path:    DefaultHistoryPath(),
		},
		Monitor: MonitorConfig{
			PollTimeout:  time.Second,
			ErrorBackoff: time.Second,
			SysfsRoot:    "/sys",
			ScanExisting: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		MQTT: MQTTConfig{
			Host:        "localhost",
			Port:        1883,
			ClientID:    "cordid-agent",
			QoS:         1,
			TopicPrefix: "cordid",
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "cordid",
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides CORDID_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CORDID_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CORDID_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("CORDID_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CORDID_SYSFS_ROOT"); v != "" {
		cfg.Monitor.SysfsRoot = v
	}
	if v := os.Getenv("CORDID_MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("CORDID_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("CORDID_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate 收集所有错误后一起返回
func (c *Config) Validate() error {
	var errs []string

	switch c.Storage.Backend {
	case "auto", "json", "sqlite":
	default:
		errs = append(errs, "storage.backend must be auto, json or sqlite")
	}
	if c.Storage.Path == "" {
		errs = append(errs, "storage.path is required")
	}

	if c.Monitor.PollTimeout <= 0 {
		errs = append(errs, "monitor.poll_timeout must be positive")
	}
	if c.Monitor.ErrorBackoff < 0 {
		errs = append(errs, "monitor.error_backoff must not be negative")
	}
	if c.Monitor.SysfsRoot == "" {
		errs = append(errs, "monitor.sysfs_root is required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		errs = append(errs, "logging.format must be console or json")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			errs = append(errs, "mqtt.port must be between 1 and 65535")
		}
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

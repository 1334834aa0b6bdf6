// Package store 持久化设备历史：device_history、event_log、device_registry。
// 启动时加载一次，每个事件处理后整体重写。
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/multierr"

	"github.com/Hara602/cordID/internal/config"
	"github.com/Hara602/cordID/internal/model"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	backupSuffix = ".bak"

	// 读取文件头 (262 bytes 是 filetype 库建议的最佳长度)
	headerSize = 262
)

type Store interface {
	// Load 文件不存在时返回空文档
	Load() (*model.Document, error)
	Save(doc *model.Document) error
	Close() error
}

// Open 按配置打开存储；backend 为 auto 时根据已有文件的文件头判断格式
func Open(cfg config.StorageConfig) (Store, error) {
	backend, err := detectBackend(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	switch backend {
	case "json":
		return NewJSON(cfg.Path), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// OpenAndLoad 打开并加载历史。文档无法解析时原文件改名为 <path>.bak 保留，
// 从空历史开始；backup 为保留下来的文件路径，未发生时为空。
func OpenAndLoad(cfg config.StorageConfig) (st Store, doc *model.Document, backup string, err error) {
	st, err = Open(cfg)
	if err != nil {
		return nil, nil, "", err
	}
	doc, err = st.Load()
	if err == nil {
		return st, doc, "", nil
	}
	if !errors.Is(err, ErrCorrupt) {
		return nil, nil, "", multierr.Append(err, st.Close())
	}

	loadErr := err
	if err := st.Close(); err != nil {
		return nil, nil, "", multierr.Append(loadErr, err)
	}
	backup = cfg.Path + backupSuffix
	if err := os.Rename(cfg.Path, backup); err != nil {
		return nil, nil, "", fmt.Errorf("keeping unreadable history: %w", multierr.Append(loadErr, err))
	}
	st, err = Open(cfg)
	if err != nil {
		return nil, nil, backup, err
	}
	return st, model.NewDocument(), backup, nil
}

func detectBackend(cfg config.StorageConfig) (string, error) {
	if cfg.Backend != "auto" {
		return cfg.Backend, nil
	}

	f, err := os.Open(cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		switch strings.ToLower(filepath.Ext(cfg.Path)) {
		case ".db", ".sqlite", ".sqlite3":
			return "sqlite", nil
		default:
			return "json", nil
		}
	}
	if err != nil {
		return "", fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading history header: %w", err)
	}
	if filetype.Is(head[:n], "sqlite") {
		return "sqlite", nil
	}
	return "json", nil
}

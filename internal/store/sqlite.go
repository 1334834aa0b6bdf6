package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/Hara602/cordID/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS device_history (
	stable_id TEXT PRIMARY KEY,
	max_speed INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS device_registry (
	stable_id TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	speeds    TEXT NOT NULL,
	last_seen TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS event_log (
	seq         INTEGER PRIMARY KEY,
	time        TEXT NOT NULL,
	event       TEXT NOT NULL,
	device_name TEXT NOT NULL,
	speed       TEXT NOT NULL,
	bus         TEXT NOT NULL,
	version     TEXT NOT NULL,
	stable_id   TEXT NOT NULL
);
`

// SQLiteStore 与 JSON 文档等价的 SQLite 存储。
// event_log 只追加，Save 时只插入 seq 之后的新条目；其余两张表整体覆盖。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite 初始化数据库表结构
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create table: %w", err), db.Close())
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load() (*model.Document, error) {
	doc := model.NewDocument()

	rows, err := s.db.Query("SELECT stable_id, max_speed FROM device_history")
	if err != nil {
		return nil, fmt.Errorf("query device_history: %w", err)
	}
	for rows.Next() {
		var id string
		var mbps int
		if err := rows.Scan(&id, &mbps); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		doc.DeviceHistory[model.Identity(id)] = mbps
	}
	if err := multierr.Append(rows.Err(), rows.Close()); err != nil {
		return nil, fmt.Errorf("read device_history: %w", err)
	}

	rows, err = s.db.Query("SELECT stable_id, name, speeds, last_seen FROM device_registry")
	if err != nil {
		return nil, fmt.Errorf("query device_registry: %w", err)
	}
	for rows.Next() {
		var id, name, speeds, lastSeen string
		if err := rows.Scan(&id, &name, &speeds, &lastSeen); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		rec := model.RegistryRecord{Name: name}
		if err := json.Unmarshal([]byte(speeds), &rec.Speeds); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: speeds of %s: %w", ErrCorrupt, id, err)
		}
		if rec.LastSeen, err = model.ParseTimestamp(lastSeen); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: last_seen of %s: %w", ErrCorrupt, id, err)
		}
		doc.DeviceRegistry[model.Identity(id)] = rec
	}
	if err := multierr.Append(rows.Err(), rows.Close()); err != nil {
		return nil, fmt.Errorf("read device_registry: %w", err)
	}

	rows, err = s.db.Query(`SELECT time, event, device_name, speed, bus, version, stable_id
		FROM event_log ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query event_log: %w", err)
	}
	for rows.Next() {
		var e model.LogEntry
		var ts, id string
		if err := rows.Scan(&ts, &e.Event, &e.DeviceName, &e.Speed, &e.Bus, &e.Version, &id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if e.Time, err = model.ParseTimestamp(ts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: event_log time: %w", ErrCorrupt, err)
		}
		e.Identity = model.Identity(id)
		doc.EventLog = append(doc.EventLog, e)
	}
	if err := multierr.Append(rows.Err(), rows.Close()); err != nil {
		return nil, fmt.Errorf("read event_log: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) Save(doc *model.Document) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	if _, err = tx.Exec("DELETE FROM device_history"); err != nil {
		return fmt.Errorf("clear device_history: %w", err)
	}
	for id, mbps := range doc.DeviceHistory {
		if _, err = tx.Exec("INSERT INTO device_history(stable_id, max_speed) VALUES (?, ?)", string(id), mbps); err != nil {
			return fmt.Errorf("insert device_history: %w", err)
		}
	}

	if _, err = tx.Exec("DELETE FROM device_registry"); err != nil {
		return fmt.Errorf("clear device_registry: %w", err)
	}
	for id, rec := range doc.DeviceRegistry {
		speeds, mErr := json.Marshal(rec.Speeds)
		if mErr != nil {
			err = mErr
			return fmt.Errorf("encode speeds: %w", err)
		}
		if _, err = tx.Exec(
			"INSERT INTO device_registry(stable_id, name, speeds, last_seen) VALUES (?, ?, ?, ?)",
			string(id), rec.Name, string(speeds), rec.LastSeen.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert device_registry: %w", err)
		}
	}

	var stored int
	if err = tx.QueryRow("SELECT COUNT(*) FROM event_log").Scan(&stored); err != nil {
		return fmt.Errorf("count event_log: %w", err)
	}
	for i := stored; i < len(doc.EventLog); i++ {
		e := doc.EventLog[i]
		if _, err = tx.Exec(
			`INSERT INTO event_log(seq, time, event, device_name, speed, bus, version, stable_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i, e.Time.Format(time.RFC3339Nano), e.Event, e.DeviceName, e.Speed, e.Bus, e.Version, string(e.Identity),
		); err != nil {
			return fmt.Errorf("insert event_log: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

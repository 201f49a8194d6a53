package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hdytrend/internal/market"
	"hdytrend/internal/store"

	_ "modernc.org/sqlite"
)

// Store 使用纯 Go 的 modernc sqlite 驱动实现 CacheStore，一个 key 一行。
type Store struct {
	db   *sql.DB
	path string
}

var _ store.CacheStore = (*Store)(nil)

// Manifest 记录某个 key 的统计信息。
type Manifest struct {
	Key        string `json:"key"`
	FirstDate  string `json:"first_date"`
	LastDate   string `json:"last_date"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite 路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bar_cache (
			cache_key    TEXT PRIMARY KEY,
			version      TEXT NOT NULL,
			first_date   TEXT,
			last_date    TEXT,
			rows         INTEGER DEFAULT 0,
			payload      BLOB NOT NULL,
			last_sync_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bar_cache_version ON bar_cache(version);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]market.Bar, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM bar_cache WHERE cache_key = ?`, key)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var bars []market.Bar
	if err := json.Unmarshal(payload, &bars); err != nil {
		return nil, false, fmt.Errorf("解析缓存 %s 失败: %w", key, err)
	}
	return bars, true, nil
}

// Set 整体覆盖 key 对应的序列（ON CONFLICT 更新）。
func (s *Store) Set(ctx context.Context, key string, bars []market.Bar) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cache key 不能为空")
	}
	payload, err := json.Marshal(bars)
	if err != nil {
		return err
	}
	first, last := "", ""
	if len(bars) > 0 {
		first = bars[0].Date
		last = bars[len(bars)-1].Date
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bar_cache (cache_key, version, first_date, last_date, rows, payload, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
		    version=excluded.version,
		    first_date=excluded.first_date,
		    last_date=excluded.last_date,
		    rows=excluded.rows,
		    payload=excluded.payload,
		    last_sync_at=excluded.last_sync_at`,
		key, store.Version, first, last, len(bars), payload, time.Now().UnixMilli())
	return err
}

// Manifest 返回 key 的统计信息，不解码 payload。
func (s *Store) Manifest(ctx context.Context, key string) (Manifest, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cache_key, COALESCE(first_date, ''), COALESCE(last_date, ''), rows, last_sync_at
		FROM bar_cache WHERE cache_key = ?`, key)
	var m Manifest
	if err := row.Scan(&m.Key, &m.FirstDate, &m.LastDate, &m.Rows, &m.LastSyncAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, err
	}
	return m, true, nil
}

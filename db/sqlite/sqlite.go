package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("无法创建目录，请检查权限问题: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("无法打开数据库，请检查权限问题: %w", err)
	}
	// 各阶段的 worker 会并发写入，sqlite 只允许一个写连接
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	sqlDB := &SQLiteDB{db: db}

	if err := sqlDB.initTable(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("数据库创建失败: %w", err)
	}

	return sqlDB, nil
}

func (d *SQLiteDB) Close() error { return d.db.Close() }

func (d *SQLiteDB) initTable() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,            -- uuid
  scholar_id TEXT NOT NULL,
  strategy TEXT NOT NULL,
  started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  finished_at DATETIME,
  summary TEXT                    -- 各阶段统计，JSON
);

CREATE TABLE IF NOT EXISTS scholars (
  scholar_id TEXT PRIMARY KEY,
  fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS publications (
  scholar_id TEXT NOT NULL REFERENCES scholars(scholar_id) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  title TEXT NOT NULL,
  group_ids TEXT,                 -- 存 ",id1,id2,"
  citation TEXT,
  PRIMARY KEY (scholar_id, seq)
);

CREATE TABLE IF NOT EXISTS citation_groups (
  scholar_id TEXT NOT NULL,
  group_id TEXT NOT NULL,
  path TEXT NOT NULL,             -- direct / fallback / direct+fallback
  done_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (scholar_id, group_id)
);

CREATE TABLE IF NOT EXISTS citing_records (
  scholar_id TEXT NOT NULL,
  group_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  author_id TEXT NOT NULL,
  author_name TEXT,
  citing_title TEXT,
  cited_title TEXT,
  citation TEXT,
  PRIMARY KEY (scholar_id, group_id, seq),
  FOREIGN KEY (scholar_id, group_id) REFERENCES citation_groups(scholar_id, group_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS author_affiliations (
  strategy TEXT NOT NULL,
  author_id TEXT NOT NULL,
  name TEXT,
  affiliations TEXT,              -- JSON 数组
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (strategy, author_id)
);

CREATE TABLE IF NOT EXISTS geocode_cache (
  affiliation TEXT PRIMARY KEY,
  lat REAL,
  lng REAL,
  county TEXT,
  city TEXT,
  state TEXT,
  country TEXT,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_scholar ON runs(scholar_id);
CREATE INDEX IF NOT EXISTS idx_records_author ON citing_records(author_id);
	`

	_, err := d.db.Exec(schema)

	return err
}

// Package sqlitestore keeps the client session in a sqlite database so it
// survives restarts of the command line client.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andrebq/doorman/client"
	_ "github.com/mattn/go-sqlite3"
)

type (
	Store struct {
		db *sql.DB
	}
)

const (
	sessionKey = "session"
)

var (
	_ client.Store = (*Store)(nil)
)

// Open creates the database at file if needed
func Open(ctx context.Context, file string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return nil, fmt.Errorf("sqlitestore: unable to create directory for %v, cause %w", file, err)
	}
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%v?_journal=wal&mode=rwc", file))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: unable to open %v, cause %w", file, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitestore: unable to ping %v, cause %w", file, err)
	}
	_, err = conn.ExecContext(ctx, `create table if not exists metadata(
		key text primary key,
		value text not null
	)`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitestore: unable to create schema, cause %w", err)
	}
	return &Store{db: conn}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) (client.Session, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `select value from metadata where key = ?`, sessionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return client.Session{}, false, nil
	} else if err != nil {
		return client.Session{}, false, fmt.Errorf("sqlitestore: unable to read session, cause %w", err)
	}
	var session client.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return client.Session{}, false, fmt.Errorf("sqlitestore: corrupted session, cause %w", err)
	}
	return session, true, nil
}

func (s *Store) Save(ctx context.Context, session client.Session) error {
	buf, err := json.Marshal(session)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `insert into metadata(key, value) values (?, ?)
		on conflict(key) do update set value = excluded.value`, sessionKey, string(buf))
	if err != nil {
		return fmt.Errorf("sqlitestore: unable to save session, cause %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `delete from metadata where key = ?`, sessionKey)
	if err != nil {
		return fmt.Errorf("sqlitestore: unable to clear session, cause %w", err)
	}
	return nil
}

//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides SQLite-based checkpoint storage implementation
// for graph execution state persistence and recovery.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // Register the sqlite3 driver used by Open.

	"github.com/phuocNg964/ProMeet-AI/graph"
)

const (
	sqliteCreateCheckpoints = "CREATE TABLE IF NOT EXISTS checkpoints (" +
		"thread_id TEXT NOT NULL, " +
		"seq INTEGER NOT NULL, " +
		"checkpoint_id TEXT NOT NULL, " +
		"cursor TEXT NOT NULL, " +
		"source TEXT NOT NULL, " +
		"ts INTEGER NOT NULL, " +
		"checkpoint_json BLOB NOT NULL, " +
		"PRIMARY KEY (thread_id, seq)" +
		")"

	sqliteInsertCheckpoint = "INSERT INTO checkpoints (" +
		"thread_id, seq, checkpoint_id, cursor, source, ts, checkpoint_json) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?)"

	sqliteSelectMaxSeq = "SELECT COALESCE(MAX(seq), 0) FROM checkpoints WHERE thread_id = ?"

	sqliteSelectLatest = "SELECT checkpoint_json FROM checkpoints " +
		"WHERE thread_id = ? ORDER BY seq DESC LIMIT 1"

	sqliteSelectHistory = "SELECT checkpoint_json FROM checkpoints " +
		"WHERE thread_id = ? ORDER BY seq DESC"

	sqliteSelectHistoryLimit = sqliteSelectHistory + " LIMIT ?"

	sqliteDeleteThread = "DELETE FROM checkpoints WHERE thread_id = ?"

	sqlitePruneHistory = "DELETE FROM checkpoints WHERE thread_id = ? AND seq <= ?"
)

// DefaultMaxHistory is the default number of checkpoints kept per thread.
const DefaultMaxHistory = 100

// Saver is a SQLite-backed implementation of graph.CheckpointSaver.
// Every checkpoint is one row keyed by (thread_id, seq); the full checkpoint
// is stored as a JSON blob. Appends run in a transaction that checks the
// writer's parent sequence, so a stale writer fails with
// graph.ErrConcurrentWrite instead of forking the thread.
type Saver struct {
	db         *sql.DB
	maxHistory int64
}

// Option configures a Saver.
type Option func(*Saver)

// WithMaxHistory sets the maximum number of checkpoints kept per thread.
// Older rows are deleted in the transaction that appends a new one.
// Values below one keep only the latest checkpoint.
func WithMaxHistory(n int) Option {
	return func(s *Saver) {
		if n < 1 {
			n = 1
		}
		s.maxHistory = int64(n)
	}
}

// Open opens a SQLite database at path configured for the saver: a busy
// timeout, WAL journaling and a single connection so writers queue in
// process instead of failing with "database is locked".
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewSaver creates a new saver using the provided DB.
// The DB must use a SQLite driver. The constructor creates tables if needed.
func NewSaver(db *sql.DB, opts ...Option) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateCheckpoints); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	s := &Saver{db: db, maxHistory: DefaultMaxHistory}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load returns the latest checkpoint of the thread.
func (s *Saver) Load(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	return latest(ctx, s.db, threadID)
}

// Save appends a checkpoint.
func (s *Saver) Save(ctx context.Context, req graph.SaveRequest) (*graph.Checkpoint, error) {
	if req.ThreadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	var cp *graph.Checkpoint
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var seq int64
		if err := tx.QueryRowContext(ctx, sqliteSelectMaxSeq, req.ThreadID).Scan(&seq); err != nil {
			return fmt.Errorf("select seq: %w", err)
		}
		if seq != req.ParentSequence {
			return fmt.Errorf("thread %s at seq %d, writer at %d: %w",
				req.ThreadID, seq, req.ParentSequence, graph.ErrConcurrentWrite)
		}
		cp = graph.NewCheckpoint(req)
		return s.insertAndPrune(ctx, tx, cp)
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// Patch merges update into the latest checkpoint without moving the cursor.
func (s *Saver) Patch(
	ctx context.Context,
	threadID string,
	update graph.State,
	merge graph.MergeFunc,
) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	var cp *graph.Checkpoint
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := latest(ctx, tx, threadID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("patch thread %s: %w", threadID, graph.ErrCheckpointNotFound)
		}
		cp = graph.PatchedCheckpoint(current, update, merge)
		return s.insertAndPrune(ctx, tx, cp)
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// List returns up to limit checkpoints of the thread, newest first.
func (s *Saver) List(ctx context.Context, threadID string, limit int) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, sqliteSelectHistoryLimit, threadID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, sqliteSelectHistory, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*graph.Checkpoint
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp, err := graph.UnmarshalCheckpoint(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// DeleteThread removes all checkpoints of the thread.
func (s *Saver) DeleteThread(ctx context.Context, threadID string) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	if _, err := s.db.ExecContext(ctx, sqliteDeleteThread, threadID); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Saver) Close() error {
	return s.db.Close()
}

func (s *Saver) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertAndPrune inserts cp and drops the rows that fall outside maxHistory.
func (s *Saver) insertAndPrune(ctx context.Context, tx *sql.Tx, cp *graph.Checkpoint) error {
	if err := insert(ctx, tx, cp); err != nil {
		return err
	}
	cutoff := cp.Sequence - s.maxHistory
	if cutoff < 1 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, sqlitePruneHistory, cp.ThreadID, cutoff); err != nil {
		return fmt.Errorf("prune checkpoints: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func latest(ctx context.Context, q queryer, threadID string) (*graph.Checkpoint, error) {
	var blob []byte
	err := q.QueryRowContext(ctx, sqliteSelectLatest, threadID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select latest checkpoint: %w", err)
	}
	return graph.UnmarshalCheckpoint(blob)
}

func insert(ctx context.Context, tx *sql.Tx, cp *graph.Checkpoint) error {
	blob, err := graph.MarshalCheckpoint(cp)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqliteInsertCheckpoint,
		cp.ThreadID, cp.Sequence, cp.ID, cp.Cursor.String(), string(cp.Source),
		cp.Timestamp.UnixNano(), blob); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

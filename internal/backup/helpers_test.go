// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/config"
	"github.com/tomtom215/promptshelf/internal/database"
)

// fakeStore is an in-memory DataStore that can be told to fail.
type fakeStore struct {
	mu        sync.Mutex
	tables    map[string][]Row
	readErr   map[string]error
	deleteErr map[string]error
	insertErr map[string]error
	mergeErr  map[string]error
	panicOn   map[string]bool
	calls     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:    make(map[string][]Row),
		readErr:   make(map[string]error),
		deleteErr: make(map[string]error),
		insertErr: make(map[string]error),
		mergeErr:  make(map[string]error),
		panicOn:   make(map[string]bool),
	}
}

func (f *fakeStore) ReadTable(_ context.Context, table string, _ []string) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "read:"+table)
	if err := f.readErr[table]; err != nil {
		return nil, err
	}
	return append([]Row{}, f.tables[table]...), nil
}

func (f *fakeStore) DeleteAll(_ context.Context, table string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete:"+table)
	if err := f.deleteErr[table]; err != nil {
		return 0, err
	}
	n := len(f.tables[table])
	f.tables[table] = nil
	return int64(n), nil
}

func (f *fakeStore) InsertRows(_ context.Context, table string, rows []Row) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert:"+table)
	if f.panicOn[table] {
		panic("boom")
	}
	if err := f.insertErr[table]; err != nil {
		return 0, err
	}
	f.tables[table] = append(f.tables[table], rows...)
	return len(rows), nil
}

func (f *fakeStore) MergeRows(_ context.Context, table string, keys []string, rows []Row) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "merge:"+table)
	if f.panicOn[table] {
		panic("boom")
	}
	if err := f.mergeErr[table]; err != nil {
		return 0, err
	}
	for _, row := range rows {
		exists := false
		for _, cur := range f.tables[table] {
			if fmt.Sprint(cur[keys[0]]) == fmt.Sprint(row[keys[0]]) {
				exists = true
				break
			}
		}
		if !exists {
			f.tables[table] = append(f.tables[table], row)
		}
	}
	return len(rows), nil
}

func (f *fakeStore) writeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		if len(c) > 5 && c[:5] == "read:" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// memArchives is an in-memory ArchiveStore.
type memArchives struct {
	mu    sync.Mutex
	files map[string][]byte
	times map[string]time.Time
	clock func() time.Time
}

func newMemArchives() *memArchives {
	return &memArchives{
		files: make(map[string][]byte),
		times: make(map[string]time.Time),
		clock: stepClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)),
	}
}

func (m *memArchives) put(file string, data []byte, mod time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[file] = data
	m.times[file] = mod
}

func (m *memArchives) Create(_ context.Context, file string, data []byte) (ArchiveInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[file]; ok {
		return ArchiveInfo{}, fmt.Errorf("%w: %s", ErrArchiveExists, file)
	}
	m.files[file] = append([]byte(nil), data...)
	m.times[file] = m.clock()
	return ArchiveInfo{File: file, Bytes: int64(len(data)), ModTime: m.times[file]}, nil
}

func (m *memArchives) List(_ context.Context) ([]ArchiveInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ArchiveInfo, 0, len(m.files))
	for f, d := range m.files {
		out = append(out, ArchiveInfo{File: f, Bytes: int64(len(d)), ModTime: m.times[f]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out, nil
}

func (m *memArchives) Open(_ context.Context, file string) (io.ReadCloser, ArchiveInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.files[file]
	if !ok {
		return nil, ArchiveInfo{}, fmt.Errorf("%w: %s", ErrArchiveNotFound, file)
	}
	return io.NopCloser(bytes.NewReader(d)), ArchiveInfo{File: file, Bytes: int64(len(d)), ModTime: m.times[file]}, nil
}

// stepClock returns successive seconds starting at start.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type testEnv struct {
	engine   *Engine
	audit    *audit.MemoryStore
	archives *memArchives
}

func newTestEngine(t *testing.T, data DataStore, registry *Registry, clock func() time.Time) *testEnv {
	t.Helper()

	auditStore := audit.NewMemoryStore(1000)
	auditLogger := audit.NewLogger(auditStore, nil)
	t.Cleanup(func() { _ = auditLogger.Close() })

	archives := newMemArchives()
	engine, err := NewEngine(Options{
		Registry: registry,
		Data:     data,
		Archives: archives,
		Auditor:  auditLogger,
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &testEnv{engine: engine, audit: auditStore, archives: archives}
}

func (env *testEnv) auditCount(t *testing.T, typ audit.EventType) int64 {
	t.Helper()
	n, err := env.audit.Count(context.Background(), audit.QueryFilter{Types: []audit.EventType{typ}})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

var testAdmin = Admin{ID: "admin-1", Name: "admin", Roles: []string{"admin"}, AuthMethod: "jwt"}

// setupDuckDB opens an in-memory DuckDB with users and posts tables.
func setupDuckDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{Driver: "duckdb", Path: ":memory:", Threads: 1, SkipSchema: true})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, title VARCHAR)`,
	} {
		if _, err := db.Conn().Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return db
}

func usersPostsRegistry() *Registry {
	return MustRegistry(Table{Name: "users"}, Table{Name: "posts"})
}

func countRows(t *testing.T, db *database.DB, table string) int64 {
	t.Helper()
	n, err := db.CountRows(context.Background(), table)
	if err != nil {
		t.Fatalf("CountRows(%s): %v", table, err)
	}
	return n
}

// Package session hands out engine sessions keyed by application name.
//
// A Registry caches one Session per name: the first GetOrCreate for a name
// opens a fresh engine, and every later call with that name returns the same
// handle. Callers construct the Registry and pass sessions down explicitly;
// there is no process-wide cache.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dtnitsch/covid-agg/pkg/db"
)

var ErrEmptyAppName = errors.New("application name is required")

// Options configures every session a Registry opens.
type Options struct {
	// DSN of the engine database; empty means in-memory.
	DSN    string
	Logger *slog.Logger
}

// Session is one engine context: the database plus the run identity used in logs.
type Session struct {
	appName string
	id      string
	tag     string // short run id carried by table names
	db      *db.DB
	logger  *slog.Logger

	mu     sync.Mutex
	tables map[string]int
}

// AppName returns the name the session was created under.
func (s *Session) AppName() string { return s.appName }

// ID returns the run id of the session.
func (s *Session) ID() string { return s.id }

// DB returns the engine handle.
func (s *Session) DB() *db.DB { return s.db }

// Logger returns a logger tagged with the session's app name and run id.
func (s *Session) Logger() *slog.Logger { return s.logger }

// NextTableName returns a fresh table name such as "cases_3f2a9c1e_1". The
// run id part keeps names from different runs apart when the engine
// database is a file shared between runs or app names.
func (s *Session) NextTableName(prefix string) string {
	prefix = sanitize(prefix)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[prefix]++
	return fmt.Sprintf("%s_%s_%d", prefix, s.tag, s.tables[prefix])
}

func sanitize(prefix string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(prefix) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "table"
	}
	return sb.String()
}

// Registry caches sessions by application name.
type Registry struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for appName, opening it on first use.
func (r *Registry) GetOrCreate(ctx context.Context, appName string) (*Session, error) {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return nil, ErrEmptyAppName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[appName]; ok {
		return s, nil
	}

	database, err := db.Open(r.opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open session %s: %w", appName, err)
	}
	if err := database.PingContext(ctx); err != nil {
		_ = database.Close() // Close error less important than ping error
		return nil, fmt.Errorf("failed to reach engine for session %s: %w", appName, err)
	}

	id := uuid.New().String()
	s := &Session{
		appName: appName,
		id:      id,
		tag:     strings.ReplaceAll(id, "-", "")[:8],
		db:      database,
		logger:  r.opts.Logger.With("app", appName, "run_id", id),
		tables:  make(map[string]int),
	}
	r.sessions[appName] = s
	s.logger.Info("session started", "dsn", database.Path())
	return s, nil
}

// Names lists the cached application names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every cached session and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, s := range r.sessions {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session %s: %w", name, err))
		}
		delete(r.sessions, name)
	}
	return errors.Join(errs...)
}

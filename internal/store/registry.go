// Package store manages backend engines, scoped sessions, schema bootstrap
// and state seeding for the provisioning ledger.
package store

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"provisioncore/internal/observability"
	"provisioncore/pkg/fsm"
)

// Backend selects the relational store implementation behind an engine.
type Backend string

// Supported backends.
const (
	// SQLite opens an embedded database at the given filesystem path, or
	// in memory for the path ":memory:".
	SQLite Backend = "sqlite"
	// Postgres connects to a server using the given DSN.
	Postgres Backend = "postgres"
)

const memoryPath = ":memory:"

// Engine is one cached connection pool for a (backend, path) pair, with its
// schema applied and its state rows seeded.
type Engine struct {
	backend Backend
	path    string
	db      *sql.DB
}

// Backend returns the engine's backend kind.
func (e *Engine) Backend() Backend { return e.backend }

// Path returns the connection target the engine was opened with.
func (e *Engine) Path() string { return e.path }

// DB exposes the underlying pool for integration testing hooks.
func (e *Engine) DB() *sql.DB { return e.db }

// Close closes the underlying pool. Sessions already obtained from the
// engine fail on next use.
func (e *Engine) Close() error { return e.db.Close() }

type engineKey struct {
	backend Backend
	path    string
}

// Registry caches one engine per (backend, path) pair and hands out scoped
// sessions. It replaces implicit process-global connection state: construct
// one at start-up and pass it to every component needing store access.
type Registry struct {
	mu        sync.Mutex
	engines   map[engineKey]*Engine
	catalogue *fsm.Catalogue
	handles   []string
	log       *zap.Logger
	metrics   *observability.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithSystemComponents declares component actors seeded on first connect,
// identified by handle. Seeding them is idempotent.
func WithSystemComponents(handles ...string) Option {
	return func(r *Registry) { r.handles = append(r.handles, handles...) }
}

// WithMetrics wires seed and ledger collectors into the registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry builds a registry that seeds every engine it opens from the
// given catalogue. A nil logger disables logging.
func NewRegistry(catalogue *fsm.Catalogue, logger *zap.Logger, opts ...Option) *Registry {
	if catalogue == nil {
		catalogue, _ = fsm.NewCatalogue()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		engines:   make(map[engineKey]*Engine),
		catalogue: catalogue,
		log:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect returns a session bound to the cached engine for (backend, path),
// creating, migrating and seeding the engine on first use.
func (r *Registry) Connect(ctx context.Context, backend Backend, path string) (*Session, error) {
	engine, err := r.engine(ctx, backend, path)
	if err != nil {
		return nil, err
	}
	conn, err := engine.db.Conn(ctx)
	if err != nil {
		return nil, Classify("acquire session", err)
	}
	return &Session{engine: engine, conn: conn}, nil
}

// Disconnect removes the cached engine for (backend, path) and returns it so
// the caller can close it. Sessions already obtained keep their connection
// until closed. Returns nil if no engine was cached.
func (r *Registry) Disconnect(backend Backend, path string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := engineKey{backend: backend, path: path}
	engine := r.engines[key]
	delete(r.engines, key)
	return engine
}

// Items returns the (backend, path) pairs with a cached engine.
func (r *Registry) Items() []Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Engine, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, Engine{backend: e.backend, path: e.path})
	}
	return out
}

func (r *Registry) engine(ctx context.Context, backend Backend, path string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := engineKey{backend: backend, path: path}
	if engine, ok := r.engines[key]; ok {
		return engine, nil
	}
	engine, err := openEngine(ctx, backend, path)
	if err != nil {
		return nil, err
	}
	created, err := r.initialise(ctx, engine)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	r.log.Info("engine initialised",
		zap.String("backend", string(backend)),
		zap.String("path", path),
		zap.Int("seeded", created))
	r.engines[key] = engine
	return engine, nil
}

func openEngine(ctx context.Context, backend Backend, path string) (*Engine, error) {
	var driver, dsn string
	switch backend {
	case SQLite:
		driver = "sqlite"
		// Referential integrity is off by default in sqlite; every
		// pooled connection must enable it.
		if path == memoryPath {
			dsn = "file::memory:?_pragma=foreign_keys(1)"
		} else {
			dsn = "file:" + path + "?_pragma=foreign_keys(1)"
		}
	case Postgres:
		driver = "pgx"
		dsn = path
	default:
		return nil, Classify("open", errUnknownBackend(backend))
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, Classify("open", err)
	}
	if backend == SQLite && path == memoryPath {
		// An in-memory database exists per connection; pin the pool to
		// one so every session sees the same data.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Classify("ping", err)
	}
	engine := &Engine{backend: backend, path: path, db: db}
	for _, stmt := range schemaStatements(backend) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, Classify("apply schema", err)
		}
	}
	return engine, nil
}

// initialise seeds state rows for the registry's catalogue plus any declared
// system components, reporting the number of state rows created.
func (r *Registry) initialise(ctx context.Context, engine *Engine) (int, error) {
	conn, err := engine.db.Conn(ctx)
	if err != nil {
		return 0, Classify("acquire session", err)
	}
	sess := &Session{engine: engine, conn: conn}
	defer func() { _ = sess.Close() }()

	created, err := Seed(ctx, sess, r.catalogue)
	if err != nil {
		return 0, err
	}
	r.metrics.SeedOutcome(created, len(r.catalogue.Refs())-created)
	if err := seedComponents(ctx, sess, r.handles); err != nil {
		return created, err
	}
	return created, nil
}

type errUnknownBackend Backend

func (e errUnknownBackend) Error() string { return "unknown backend " + string(e) }

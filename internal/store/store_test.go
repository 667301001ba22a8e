package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"provisioncore/pkg/domain"
	"provisioncore/pkg/fsm"
)

func testCatalogue(t *testing.T) *fsm.Catalogue {
	t.Helper()
	c, err := fsm.NewCatalogue(
		fsm.MustNew("host", "requested", "up", "down"),
		fsm.MustNew("credential", "untrusted", "trusted"),
	)
	if err != nil {
		t.Fatalf("catalogue: %v", err)
	}
	return c
}

func testConnect(t *testing.T, r *Registry) *Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	sess, err := r.Connect(context.Background(), SQLite, path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = sess.Close()
		if e := r.Disconnect(SQLite, path); e != nil {
			_ = e.Close()
		}
	})
	return sess
}

func TestConnectCachesOneEnginePerTarget(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(testCatalogue(t), nil)
	path := filepath.Join(t.TempDir(), "store.db")

	first, err := r.Connect(ctx, SQLite, path)
	if err != nil {
		t.Fatalf("first connect: %v", err)
	}
	defer func() { _ = first.Close() }()
	defer func() { _ = first.Engine().Close() }()
	second, err := r.Connect(ctx, SQLite, path)
	if err != nil {
		t.Fatalf("second connect: %v", err)
	}
	defer func() { _ = second.Close() }()

	if first.Engine() != second.Engine() {
		t.Fatalf("sessions on the same target got different engines")
	}
	if items := r.Items(); len(items) != 1 {
		t.Fatalf("Items() = %v, want one entry", items)
	}

	other, err := r.Connect(ctx, SQLite, filepath.Join(t.TempDir(), "other.db"))
	if err != nil {
		t.Fatalf("connect other: %v", err)
	}
	defer func() { _ = other.Close() }()
	defer func() { _ = other.Engine().Close() }()
	if other.Engine() == first.Engine() {
		t.Fatalf("different targets share an engine")
	}
}

func TestDisconnectEvictsEngine(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(testCatalogue(t), nil)
	path := filepath.Join(t.TempDir(), "store.db")

	first, err := r.Connect(ctx, SQLite, path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	engine := first.Engine()
	if err := first.Close(); err != nil {
		t.Fatalf("close session: %v", err)
	}

	removed := r.Disconnect(SQLite, path)
	if removed != engine {
		t.Fatalf("Disconnect returned %v, want the cached engine", removed)
	}
	if err := removed.Close(); err != nil {
		t.Fatalf("close engine: %v", err)
	}
	if r.Disconnect(SQLite, path) != nil {
		t.Fatalf("second Disconnect found an engine")
	}

	second, err := r.Connect(ctx, SQLite, path)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer func() { _ = second.Close() }()
	defer func() { _ = second.Engine().Close() }()
	if second.Engine() == engine {
		t.Fatalf("reconnect reused the evicted engine")
	}
}

func TestConnectRejectsUnknownBackend(t *testing.T) {
	r := NewRegistry(testCatalogue(t), nil)
	if _, err := r.Connect(context.Background(), Backend("oracle"), "x"); err == nil {
		t.Fatalf("unknown backend accepted")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	catalogue := testCatalogue(t)
	r := NewRegistry(catalogue, nil)
	sess := testConnect(t, r)

	// Connect already seeded once; a rerun must create nothing.
	created, err := Seed(ctx, sess, catalogue)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if created != 0 {
		t.Fatalf("second seed created %d rows, want 0", created)
	}

	var count int
	if err := sess.QueryRow(ctx, `SELECT COUNT(*) FROM states`).Scan(&count); err != nil {
		t.Fatalf("count states: %v", err)
	}
	if want := len(catalogue.Refs()); count != want {
		t.Fatalf("states table has %d rows, want %d", count, want)
	}
}

func TestSeedPicksUpNewMachines(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(testCatalogue(t), nil)
	sess := testConnect(t, r)

	grown, err := fsm.NewCatalogue(
		fsm.MustNew("host", "requested", "up", "down"),
		fsm.MustNew("credential", "untrusted", "trusted"),
		fsm.MustNew("monitored", "up", "down"),
	)
	if err != nil {
		t.Fatalf("catalogue: %v", err)
	}
	created, err := Seed(ctx, sess, grown)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if created != 2 {
		t.Fatalf("seed created %d rows, want the 2 new monitored states", created)
	}
}

func TestStateUniquenessScopedToMachine(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(testCatalogue(t), nil)
	sess := testConnect(t, r)

	// "up" exists under host; the same name under another machine is fine.
	if _, err := sess.Exec(ctx,
		`INSERT INTO states (machine, name) VALUES (?, ?)`, "monitored", "up"); err != nil {
		t.Fatalf("insert (monitored, up): %v", err)
	}
	_, err := sess.Exec(ctx,
		`INSERT INTO states (machine, name) VALUES (?, ?)`, "host", "up")
	if err = Classify("insert state", err); !domain.IsConstraint(err) {
		t.Fatalf("duplicate (host, up) error = %v, want constraint", err)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(testCatalogue(t), nil)
	sess := testConnect(t, r)

	_, err := sess.Exec(ctx,
		`INSERT INTO touches (artifact_id, actor_id, state_id, at) VALUES (?, ?, ?, ?)`,
		9999, 9999, 9999, int64(0))
	if err = Classify("insert touch", err); !domain.IsReferential(err) {
		t.Fatalf("dangling touch error = %v, want referential", err)
	}
}

func TestSystemComponentsSeededOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")
	const handle = "burst.controller"

	for i := 0; i < 2; i++ {
		r := NewRegistry(testCatalogue(t), nil, WithSystemComponents(handle))
		sess, err := r.Connect(ctx, SQLite, path)
		if err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
		var count int
		if err := sess.QueryRow(ctx,
			`SELECT COUNT(*) FROM actors WHERE handle = ?`, handle).Scan(&count); err != nil {
			t.Fatalf("count actors: %v", err)
		}
		if count != 1 {
			t.Fatalf("connect %d: %d actors for %q, want 1", i, count, handle)
		}
		_ = sess.Close()
		if e := r.Disconnect(SQLite, path); e != nil {
			_ = e.Close()
		}
	}
}

func TestMemoryDatabaseSharedAcrossSessions(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(testCatalogue(t), nil)

	sess, err := r.Connect(ctx, SQLite, ":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	var count int
	if err := sess.QueryRow(ctx, `SELECT COUNT(*) FROM states`).Scan(&count); err != nil {
		t.Fatalf("count states: %v", err)
	}
	if count == 0 {
		t.Fatalf("in-memory database lost seeded rows across connections")
	}
	_ = sess.Close()
	if e := r.Disconnect(SQLite, ":memory:"); e != nil {
		_ = e.Close()
	}
}

func TestRebindPostgresPlaceholders(t *testing.T) {
	pg := &Engine{backend: Postgres}
	got := pg.rebind(`INSERT INTO states (machine, name) VALUES (?, ?) ON CONFLICT (machine, name) DO NOTHING`)
	want := `INSERT INTO states (machine, name) VALUES ($1, $2) ON CONFLICT (machine, name) DO NOTHING`
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}

	lite := &Engine{backend: SQLite}
	query := `SELECT id FROM states WHERE machine = ? AND name = ?`
	if got := lite.rebind(query); got != query {
		t.Fatalf("sqlite rebind altered query: %q", got)
	}
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("PROVISIONCORE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PROVISIONCORE_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	r := NewRegistry(testCatalogue(t), nil)
	sess, err := r.Connect(ctx, Postgres, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() {
		_ = sess.Close()
		if e := r.Disconnect(Postgres, dsn); e != nil {
			_ = e.Close()
		}
	}()
	created, err := Seed(ctx, sess, testCatalogue(t))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if created != 0 {
		t.Fatalf("second seed created %d rows, want 0", created)
	}
}

// Package ledger implements the append-only event log over a store session:
// appending touches with their resources, and the current-state, history and
// provenance queries consumers build workflows on.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"provisioncore/internal/observability"
	"provisioncore/internal/store"
	"provisioncore/pkg/domain"
)

// Order selects the direction of history queries.
type Order int

// History orderings by touch timestamp.
const (
	Ascending Order = iota
	Descending
)

// Ledger binds the event-log operations to one session. Like the session it
// wraps, a ledger serves one logical unit of work at a time.
type Ledger struct {
	sess    *store.Session
	log     *zap.Logger
	metrics *observability.Metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger attaches a logger for factory-level warnings.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithMetrics attaches append and query collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// New builds a ledger over the given session.
func New(sess *store.Session, opts ...Option) *Ledger {
	l := &Ledger{sess: sess, log: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AppendTouch records that actor put artifact into the named state at the
// given instant, atomically with any resources established by the event.
// The state must already be seeded: an unknown (machine, name) pair fails
// with a referential error, as does a dangling artifact or actor reference.
func (l *Ledger) AppendTouch(ctx context.Context, artifact domain.Artifact, actor domain.Actor, ref domain.StateRef, at time.Time, resources ...domain.Resource) (domain.Touch, error) {
	var touch domain.Touch
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, stateID, err := appendTouchTx(ctx, tx, artifact.ID, actor.ID, ref, at)
		if err != nil {
			return err
		}
		touch = domain.Touch{
			ID:         id,
			ArtifactID: artifact.ID,
			ActorID:    actor.ID,
			StateID:    stateID,
			At:         at.UTC(),
		}
		for _, res := range resources {
			if err := insertResource(ctx, tx, id, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Touch{}, err
	}
	l.metrics.TouchAppended()
	return touch, nil
}

// CurrentState resolves the state of the artifact's most recent touch by
// timestamp. Ties are broken by highest insert order. Timestamp order wins
// over insertion order: a backdated touch inserted later does not become
// current.
func (l *Ledger) CurrentState(ctx context.Context, artifact domain.Artifact) (domain.State, error) {
	defer l.observe(time.Now())
	var s domain.State
	err := l.sess.QueryRow(ctx, `
		SELECT s.id, s.machine, s.name
		FROM touches t
		JOIN states s ON s.id = t.state_id
		WHERE t.artifact_id = ?
		ORDER BY t.at DESC, t.id DESC
		LIMIT 1`, artifact.ID).Scan(&s.ID, &s.Machine, &s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.State{}, &domain.NotFoundError{Entity: "touch", Ref: artifact.UUID}
	}
	if err != nil {
		return domain.State{}, store.Classify("current state", err)
	}
	return s, nil
}

// History returns the artifact's full (state, actor, timestamp) sequence
// ordered by timestamp.
func (l *Ledger) History(ctx context.Context, artifact domain.Artifact, order Order) ([]domain.TouchRecord, error) {
	direction := "ASC"
	if order == Descending {
		direction = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT t.id, t.artifact_id, t.actor_id, t.state_id, t.at,
		       s.machine, s.name,
		       a.uuid, a.handle, a.kind
		FROM touches t
		JOIN states s ON s.id = t.state_id
		JOIN actors a ON a.id = t.actor_id
		WHERE t.artifact_id = ?
		ORDER BY t.at %[1]s, t.id %[1]s`, direction)
	return l.touchRecords(ctx, query, artifact.ID)
}

// TouchesBetween returns the artifact's touches with from <= at < to,
// ascending by timestamp.
func (l *Ledger) TouchesBetween(ctx context.Context, artifact domain.Artifact, from, to time.Time) ([]domain.TouchRecord, error) {
	return l.touchRecords(ctx, `
		SELECT t.id, t.artifact_id, t.actor_id, t.state_id, t.at,
		       s.machine, s.name,
		       a.uuid, a.handle, a.kind
		FROM touches t
		JOIN states s ON s.id = t.state_id
		JOIN actors a ON a.id = t.actor_id
		WHERE t.artifact_id = ? AND t.at >= ? AND t.at < ?
		ORDER BY t.at ASC, t.id ASC`,
		artifact.ID, from.UTC().UnixNano(), to.UTC().UnixNano())
}

func (l *Ledger) touchRecords(ctx context.Context, query string, args ...any) ([]domain.TouchRecord, error) {
	defer l.observe(time.Now())
	rows, err := l.sess.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Classify("history", err)
	}
	defer func() { _ = rows.Close() }()
	var records []domain.TouchRecord
	for rows.Next() {
		var (
			rec    domain.TouchRecord
			atNano int64
			handle sql.NullString
			kind   string
		)
		if err := rows.Scan(
			&rec.Touch.ID, &rec.ArtifactID, &rec.ActorID, &rec.Touch.StateID, &atNano,
			&rec.State.Machine, &rec.State.Name,
			&rec.Actor.UUID, &handle, &kind,
		); err != nil {
			return nil, store.Classify("history", err)
		}
		rec.At = time.Unix(0, atNano).UTC()
		rec.State.ID = rec.Touch.StateID
		rec.Actor.ID = rec.ActorID
		rec.Actor.Kind = domain.ActorKind(kind)
		if handle.Valid {
			h := handle.String
			rec.Actor.Handle = &h
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("history", err)
	}
	return records, nil
}

// ArtifactsInState finds every artifact of the given kind whose current
// state (max timestamp, then insert order) is the named value. Worker
// components poll this to find pending-action items.
func (l *Ledger) ArtifactsInState(ctx context.Context, kind domain.ArtifactKind, ref domain.StateRef) ([]domain.Artifact, error) {
	defer l.observe(time.Now())
	rows, err := l.sess.Query(ctx, `
		SELECT a.id, a.uuid, a.model, a.kind
		FROM artifacts a
		JOIN touches t ON t.artifact_id = a.id
		JOIN states s ON s.id = t.state_id
		WHERE a.kind = ? AND s.machine = ? AND s.name = ?
		  AND t.id = (
			SELECT t2.id FROM touches t2
			WHERE t2.artifact_id = a.id
			ORDER BY t2.at DESC, t2.id DESC
			LIMIT 1)
		ORDER BY a.id`,
		string(kind), ref.Machine, ref.Name)
	if err != nil {
		return nil, store.Classify("artifacts in state", err)
	}
	defer func() { _ = rows.Close() }()
	var artifacts []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.ID, &a.UUID, &a.Model, &a.Kind); err != nil {
			return nil, store.Classify("artifacts in state", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("artifacts in state", err)
	}
	return artifacts, nil
}

func (l *Ledger) observe(start time.Time) {
	l.metrics.ObserveQuery(time.Since(start))
}

// resolveState maps a (machine, name) pair to its seeded row id.
func resolveState(ctx context.Context, tx *store.Tx, ref domain.StateRef) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM states WHERE machine = ? AND name = ?`,
		ref.Machine, ref.Name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.ReferentialError{
			Op:  "resolve state",
			Err: &domain.NotFoundError{Entity: "state", Ref: ref.Machine + "/" + ref.Name},
		}
	}
	if err != nil {
		return 0, store.Classify("resolve state", err)
	}
	return id, nil
}

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"provisioncore/internal/store"
	"provisioncore/pkg/domain"
)

// AllocateIP attaches an IP address to the artifact with a fresh touch that
// repeats the artifact's latest state and actor. An address already held by
// another artifact is detached from its old touch first: address values are
// unique, so attachment without this explicit reallocation fails with a
// constraint error rather than silently transferring ownership.
func (l *Ledger) AllocateIP(ctx context.Context, artifact domain.Artifact, value string, providerID *int64, at time.Time) (domain.IPAddress, error) {
	ip := domain.IPAddress{Value: value}
	ip.ProviderID = providerID
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		var (
			resourceID int64
			ownerID    int64
		)
		err := tx.QueryRow(ctx, `
			SELECT r.id, t.artifact_id
			FROM ipaddresses i
			JOIN resources r ON r.id = i.id
			JOIN touches t ON t.id = r.touch_id
			WHERE i.value = ?`, value).Scan(&resourceID, &ownerID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Unallocated; nothing to detach.
		case err != nil:
			return store.Classify("allocate ip", err)
		default:
			if _, err := tx.Exec(ctx, `DELETE FROM resources WHERE id = ?`, resourceID); err != nil {
				return store.Classify("allocate ip", err)
			}
			l.log.Info("ip reallocated",
				zap.String("value", value),
				zap.Int64("from_artifact", ownerID),
				zap.Int64("to_artifact", artifact.ID))
		}

		// Repeat the most recent (actor, state) so the allocation shows
		// up as its own ledger event.
		var actorID, stateID int64
		err = tx.QueryRow(ctx, `
			SELECT actor_id, state_id FROM touches
			WHERE artifact_id = ?
			ORDER BY at DESC, id DESC
			LIMIT 1`, artifact.ID).Scan(&actorID, &stateID)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ReferentialError{
				Op:  "allocate ip",
				Err: &domain.NotFoundError{Entity: "touch", Ref: artifact.UUID},
			}
		}
		if err != nil {
			return store.Classify("allocate ip", err)
		}
		touchID, err := store.InsertReturningID(ctx, tx,
			`INSERT INTO touches (artifact_id, actor_id, state_id, at) VALUES (?, ?, ?, ?)`,
			artifact.ID, actorID, stateID, at.UTC().UnixNano())
		if err != nil {
			return store.Classify("allocate ip", err)
		}
		return insertResource(ctx, tx, touchID, &ip)
	})
	if err != nil {
		return domain.IPAddress{}, err
	}
	l.metrics.TouchAppended()
	return ip, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"provisioncore/pkg/domain"
	"provisioncore/pkg/fsm"
)

// Seed ensures every (machine, name) pair in the catalogue exists as a state
// row, attempting each pair independently and tolerating rows that are
// already present. It returns the number of rows newly created; rerunning
// with an unchanged catalogue returns zero. The schema can therefore grow
// new machines and values across redeployments without migration scripts.
func Seed(ctx context.Context, sess *Session, catalogue *fsm.Catalogue) (int, error) {
	created := 0
	for _, ref := range catalogue.Refs() {
		res, err := sess.Exec(ctx,
			`INSERT INTO states (machine, name) VALUES (?, ?) ON CONFLICT (machine, name) DO NOTHING`,
			ref.Machine, ref.Name)
		if err != nil {
			return created, Classify("seed state", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, Classify("seed state", err)
		}
		created += int(n)
	}
	return created, nil
}

// seedComponents ensures a component actor exists for each handle. Existing
// handles are left untouched.
func seedComponents(ctx context.Context, sess *Session, handles []string) error {
	for _, handle := range handles {
		err := sess.WithTx(ctx, func(tx *Tx) error {
			var id int64
			err := tx.QueryRow(ctx, `SELECT id FROM actors WHERE handle = ?`, handle).Scan(&id)
			if err == nil {
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return Classify("seed component", err)
			}
			id, err = InsertReturningID(ctx, tx,
				`INSERT INTO actors (uuid, handle, kind) VALUES (?, ?, ?)`,
				uuid.NewString(), handle, string(domain.KindComponent))
			if err != nil {
				return Classify("seed component", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO components (id) VALUES (?)`, id); err != nil {
				return Classify("seed component", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// InsertReturningID runs an insert and reports the new surrogate key using
// RETURNING, which both supported backends implement.
func InsertReturningID(ctx context.Context, tx *Tx, query string, args ...any) (int64, error) {
	var id int64
	if err := tx.QueryRow(ctx, query+` RETURNING id`, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

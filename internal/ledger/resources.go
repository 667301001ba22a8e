package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"provisioncore/internal/store"
	"provisioncore/pkg/domain"
)

// insertResource writes the shared resource row and its variant row inside
// the touch's transaction, filling in the generated key and touch link.
func insertResource(ctx context.Context, tx *store.Tx, touchID int64, res domain.Resource) error {
	core := res.Core()
	id, err := store.InsertReturningID(ctx, tx,
		`INSERT INTO resources (touch_id, provider_id, kind) VALUES (?, ?, ?)`,
		touchID, core.ProviderID, string(res.ResourceKind()))
	if err != nil {
		return store.Classify("attach resource", err)
	}
	core.ID = id
	core.TouchID = touchID

	switch v := res.(type) {
	case *domain.IPAddress:
		_, err = tx.Exec(ctx, `INSERT INTO ipaddresses (id, value) VALUES (?, ?)`, id, v.Value)
	case *domain.Node:
		_, err = tx.Exec(ctx, `INSERT INTO nodes (id, name, uri) VALUES (?, ?, ?)`, id, v.Name, v.URI)
	case *domain.Label:
		_, err = tx.Exec(ctx, `INSERT INTO labels (id, name, description) VALUES (?, ?, ?)`, id, v.Name, v.Description)
	case *domain.Directory:
		_, err = tx.Exec(ctx, `INSERT INTO directories (id, description, mount_path) VALUES (?, ?, ?)`, id, v.Description, v.MountPath)
	case *domain.EmailAddress:
		_, err = tx.Exec(ctx, `INSERT INTO emailaddresses (id, value) VALUES (?, ?)`, id, v.Value)
	case *domain.PublicKey:
		_, err = tx.Exec(ctx, `INSERT INTO publickeys (id, value) VALUES (?, ?)`, id, v.Value)
	case *domain.TimeInterval:
		_, err = tx.Exec(ctx, `INSERT INTO timeintervals (id, end_at) VALUES (?, ?)`, id, v.End.UTC().UnixNano())
	case *domain.OSImage:
		_, err = tx.Exec(ctx, `INSERT INTO osimages (id, name) VALUES (?, ?)`, id, v.Name)
	case *domain.SoftwareDefinedNetwork:
		_, err = tx.Exec(ctx, `INSERT INTO softwaredefinednetworks (id, name) VALUES (?, ?)`, id, v.Name)
	case *domain.CatalogueChoice:
		_, err = tx.Exec(ctx, `INSERT INTO cataloguechoices (id, name, description, logo, natrouted) VALUES (?, ?, ?, ?, ?)`,
			id, v.Name, v.Description, v.Logo, v.NATRouted)
	case *domain.BcryptedPassword:
		_, err = tx.Exec(ctx, `INSERT INTO bcryptedpasswords (id, value) VALUES (?, ?)`, id, v.Value)
	default:
		return domain.Configf("unhandled resource kind %q", res.ResourceKind())
	}
	if err != nil {
		return store.Classify("attach resource", err)
	}
	return nil
}

// Resources returns every resource attached to any of the artifact's
// touches, most recent touch first.
func (l *Ledger) Resources(ctx context.Context, artifact domain.Artifact) ([]domain.Resource, error) {
	defer l.observe(time.Now())
	rows, err := l.sess.Query(ctx, `
		SELECT r.id, r.touch_id, r.provider_id, r.kind
		FROM resources r
		JOIN touches t ON t.id = r.touch_id
		WHERE t.artifact_id = ?
		ORDER BY t.at DESC, t.id DESC, r.id DESC`, artifact.ID)
	if err != nil {
		return nil, store.Classify("resources", err)
	}
	cores, kinds, err := scanResourceCores(rows)
	if err != nil {
		return nil, err
	}
	resources := make([]domain.Resource, 0, len(cores))
	for i, core := range cores {
		res, err := l.loadVariant(ctx, core, kinds[i])
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, nil
}

// CurrentResource resolves the artifact's current resource of the given
// kind: the one attached to the most recent touch carrying that kind.
func (l *Ledger) CurrentResource(ctx context.Context, artifact domain.Artifact, kind domain.ResourceKind) (domain.Resource, error) {
	defer l.observe(time.Now())
	var core domain.ResourceCore
	var provider sql.NullInt64
	err := l.sess.QueryRow(ctx, `
		SELECT r.id, r.touch_id, r.provider_id
		FROM resources r
		JOIN touches t ON t.id = r.touch_id
		WHERE t.artifact_id = ? AND r.kind = ?
		ORDER BY t.at DESC, t.id DESC, r.id DESC
		LIMIT 1`, artifact.ID, string(kind)).Scan(&core.ID, &core.TouchID, &provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: string(kind), Ref: artifact.UUID}
	}
	if err != nil {
		return nil, store.Classify("current resource", err)
	}
	if provider.Valid {
		core.ProviderID = &provider.Int64
	}
	return l.loadVariant(ctx, core, kind)
}

func scanResourceCores(rows *sql.Rows) ([]domain.ResourceCore, []domain.ResourceKind, error) {
	defer func() { _ = rows.Close() }()
	var (
		cores []domain.ResourceCore
		kinds []domain.ResourceKind
	)
	for rows.Next() {
		var (
			core     domain.ResourceCore
			provider sql.NullInt64
			kind     string
		)
		if err := rows.Scan(&core.ID, &core.TouchID, &provider, &kind); err != nil {
			return nil, nil, store.Classify("resources", err)
		}
		if provider.Valid {
			core.ProviderID = &provider.Int64
		}
		cores = append(cores, core)
		kinds = append(kinds, domain.ResourceKind(kind))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, store.Classify("resources", err)
	}
	return cores, kinds, nil
}

// loadVariant hydrates the variant row for a resource core.
func (l *Ledger) loadVariant(ctx context.Context, core domain.ResourceCore, kind domain.ResourceKind) (domain.Resource, error) {
	var (
		res domain.Resource
		err error
	)
	switch kind {
	case domain.KindIPAddress:
		v := &domain.IPAddress{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT value FROM ipaddresses WHERE id = ?`, core.ID).Scan(&v.Value)
		res = v
	case domain.KindNode:
		v := &domain.Node{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT name, uri FROM nodes WHERE id = ?`, core.ID).Scan(&v.Name, &v.URI)
		res = v
	case domain.KindLabel:
		v := &domain.Label{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT name, description FROM labels WHERE id = ?`, core.ID).Scan(&v.Name, &v.Description)
		res = v
	case domain.KindDirectory:
		v := &domain.Directory{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT description, mount_path FROM directories WHERE id = ?`, core.ID).Scan(&v.Description, &v.MountPath)
		res = v
	case domain.KindEmailAddress:
		v := &domain.EmailAddress{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT value FROM emailaddresses WHERE id = ?`, core.ID).Scan(&v.Value)
		res = v
	case domain.KindPublicKey:
		v := &domain.PublicKey{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT value FROM publickeys WHERE id = ?`, core.ID).Scan(&v.Value)
		res = v
	case domain.KindTimeInterval:
		v := &domain.TimeInterval{ResourceCore: core}
		var nano int64
		err = l.sess.QueryRow(ctx, `SELECT end_at FROM timeintervals WHERE id = ?`, core.ID).Scan(&nano)
		v.End = time.Unix(0, nano).UTC()
		res = v
	case domain.KindOSImage:
		v := &domain.OSImage{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT name FROM osimages WHERE id = ?`, core.ID).Scan(&v.Name)
		res = v
	case domain.KindSDN:
		v := &domain.SoftwareDefinedNetwork{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT name FROM softwaredefinednetworks WHERE id = ?`, core.ID).Scan(&v.Name)
		res = v
	case domain.KindCatalogueChoice:
		v := &domain.CatalogueChoice{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT name, description, logo, natrouted FROM cataloguechoices WHERE id = ?`, core.ID).
			Scan(&v.Name, &v.Description, &v.Logo, &v.NATRouted)
		res = v
	case domain.KindBcryptedPassword:
		v := &domain.BcryptedPassword{ResourceCore: core}
		err = l.sess.QueryRow(ctx, `SELECT value FROM bcryptedpasswords WHERE id = ?`, core.ID).Scan(&v.Value)
		res = v
	default:
		return nil, domain.Configf("unhandled resource kind %q", kind)
	}
	if err != nil {
		return nil, store.Classify("load resource", err)
	}
	return res, nil
}

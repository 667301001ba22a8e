package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"provisioncore/internal/store"
	"provisioncore/pkg/domain"
	"provisioncore/pkg/fsm"
)

// EnsureComponent returns the component actor with the given handle,
// creating it if absent. A uniqueness race with a concurrent creator
// resolves to the existing row.
func (l *Ledger) EnsureComponent(ctx context.Context, handle string) (domain.Component, error) {
	if c, err := l.componentByHandle(ctx, handle); err == nil {
		return c, nil
	} else if !domain.IsNotFound(err) {
		return domain.Component{}, err
	}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := store.InsertReturningID(ctx, tx,
			`INSERT INTO actors (uuid, handle, kind) VALUES (?, ?, ?)`,
			uuid.NewString(), handle, string(domain.KindComponent))
		if err != nil {
			return store.Classify("create component", err)
		}
		_, err = tx.Exec(ctx, `INSERT INTO components (id) VALUES (?)`, id)
		return store.Classify("create component", err)
	})
	if err != nil && !domain.IsConstraint(err) {
		return domain.Component{}, err
	}
	if err != nil {
		l.log.Debug("component exists", zap.String("handle", handle))
	}
	return l.componentByHandle(ctx, handle)
}

// EnsureUser returns the user with the given handle, creating it if absent.
// A conflict on the handle yields the existing row.
func (l *Ledger) EnsureUser(ctx context.Context, handle string, surname *string) (domain.User, error) {
	if u, err := l.userByHandle(ctx, handle); err == nil {
		return u, nil
	} else if !domain.IsNotFound(err) {
		return domain.User{}, err
	}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := store.InsertReturningID(ctx, tx,
			`INSERT INTO actors (uuid, handle, kind) VALUES (?, ?, ?)`,
			uuid.NewString(), handle, string(domain.KindUser))
		if err != nil {
			return store.Classify("create user", err)
		}
		_, err = tx.Exec(ctx, `INSERT INTO users (id, surname) VALUES (?, ?)`, id, surname)
		return store.Classify("create user", err)
	})
	if err != nil && !domain.IsConstraint(err) {
		return domain.User{}, err
	}
	if err != nil {
		l.log.Debug("user exists", zap.String("handle", handle))
	}
	return l.userByHandle(ctx, handle)
}

// CreateOrganisation registers a tenancy grouping. Duplicate names surface
// as constraint errors.
func (l *Ledger) CreateOrganisation(ctx context.Context, name string) (domain.Organisation, error) {
	org := domain.Organisation{UUID: uuid.NewString(), Name: name}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := store.InsertReturningID(ctx, tx,
			`INSERT INTO organisations (uuid, name) VALUES (?, ?)`, org.UUID, org.Name)
		if err != nil {
			return store.Classify("create organisation", err)
		}
		org.ID = id
		return nil
	})
	if err != nil {
		return domain.Organisation{}, err
	}
	return org, nil
}

// CreateProvider registers an external service account of the given kind.
func (l *Ledger) CreateProvider(ctx context.Context, name string, kind domain.ProviderKind) (domain.Provider, error) {
	p := domain.Provider{UUID: uuid.NewString(), Name: name, Kind: kind}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := store.InsertReturningID(ctx, tx,
			`INSERT INTO providers (uuid, name, kind) VALUES (?, ?, ?)`,
			p.UUID, p.Name, string(p.Kind))
		if err != nil {
			return store.Classify("create provider", err)
		}
		p.ID = id
		if kind == domain.KindArchive {
			if _, err := tx.Exec(ctx, `INSERT INTO archives (id) VALUES (?)`, id); err != nil {
				return store.Classify("create provider", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Provider{}, err
	}
	return p, nil
}

// CreateHost registers a host artifact for an organisation. Its lifecycle
// starts when the first touch is appended.
func (l *Ledger) CreateHost(ctx context.Context, org domain.Organisation, name string) (domain.Host, error) {
	h := domain.Host{
		Artifact:       newArtifact(domain.KindHost),
		OrganisationID: org.ID,
		Name:           name,
	}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := insertArtifact(ctx, tx, &h.Artifact)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO hosts (id, organisation_id, name) VALUES (?, ?, ?)`,
			id, h.OrganisationID, h.Name)
		return store.Classify("create host", err)
	})
	if err != nil {
		return domain.Host{}, err
	}
	return h, nil
}

// CreateAppliance registers an appliance artifact for an organisation.
func (l *Ledger) CreateAppliance(ctx context.Context, org domain.Organisation) (domain.Appliance, error) {
	a := domain.Appliance{
		Artifact:       newArtifact(domain.KindAppliance),
		OrganisationID: org.ID,
	}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := insertArtifact(ctx, tx, &a.Artifact)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO appliances (id, organisation_id) VALUES (?, ?)`,
			id, a.OrganisationID)
		return store.Classify("create appliance", err)
	})
	if err != nil {
		return domain.Appliance{}, err
	}
	return a, nil
}

// CreateCatalogueItem registers a deployable template for an organisation.
func (l *Ledger) CreateCatalogueItem(ctx context.Context, org domain.Organisation, name, description string, note, logo *string) (domain.CatalogueItem, error) {
	item := domain.CatalogueItem{
		UUID:           uuid.NewString(),
		Name:           name,
		Description:    description,
		Note:           note,
		Logo:           logo,
		OrganisationID: org.ID,
	}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := store.InsertReturningID(ctx, tx,
			`INSERT INTO catalogue_items (uuid, name, description, note, logo, organisation_id) VALUES (?, ?, ?, ?, ?, ?)`,
			item.UUID, item.Name, item.Description, item.Note, item.Logo, item.OrganisationID)
		if err != nil {
			return store.Classify("create catalogue item", err)
		}
		item.ID = id
		return nil
	})
	if err != nil {
		return domain.CatalogueItem{}, err
	}
	return item, nil
}

// Subscribe binds an organisation to a provider. A second subscription to
// the same provider is a constraint error.
func (l *Ledger) Subscribe(ctx context.Context, org domain.Organisation, provider domain.Provider) (domain.Subscription, error) {
	s := domain.Subscription{
		Artifact:       newArtifact(domain.KindSubscription),
		OrganisationID: org.ID,
		ProviderID:     provider.ID,
	}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := insertArtifact(ctx, tx, &s.Artifact)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO subscriptions (id, organisation_id, provider_id) VALUES (?, ?, ?)`,
			id, s.OrganisationID, s.ProviderID)
		return store.Classify("subscribe", err)
	})
	if err != nil {
		return domain.Subscription{}, err
	}
	return s, nil
}

// DeleteOrganisation removes an organisation and its subscriptions,
// including their ledger entries. Other organisations are unaffected; other
// references to the organisation (hosts, memberships) block the delete with
// a referential error.
func (l *Ledger) DeleteOrganisation(ctx context.Context, org domain.Organisation) error {
	return l.sess.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM artifacts WHERE id IN (SELECT id FROM subscriptions WHERE organisation_id = ?)`,
			org.ID); err != nil {
			return store.Classify("delete organisation", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM organisations WHERE id = ?`, org.ID); err != nil {
			return store.Classify("delete organisation", err)
		}
		return nil
	})
}

// NewRegistration starts the onboarding lifecycle for a user: it creates the
// registration artifact and, in the same transaction, its first touch in the
// registration machine's default state carrying the contact address.
func (l *Ledger) NewRegistration(ctx context.Context, user domain.User, email string, at time.Time) (domain.Registration, error) {
	reg := domain.Registration{Artifact: newArtifact(domain.KindRegistration)}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := insertArtifact(ctx, tx, &reg.Artifact)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO registrations (id) VALUES (?)`, id); err != nil {
			return store.Classify("create registration", err)
		}
		touchID, _, err := appendTouchTx(ctx, tx, id, user.ID, fsm.Registration.Initial(), at)
		if err != nil {
			return err
		}
		return insertResource(ctx, tx, touchID, &domain.EmailAddress{Value: email})
	})
	if err != nil {
		return domain.Registration{}, err
	}
	return reg, nil
}

// GrantMembership creates a membership for the user in the organisation and
// records the grant as the membership's first touch, carrying the user's
// email address.
func (l *Ledger) GrantMembership(ctx context.Context, org domain.Organisation, user domain.User, role, email string, at time.Time) (domain.Membership, error) {
	m := domain.Membership{
		Artifact:       newArtifact(domain.KindMembership),
		OrganisationID: org.ID,
		Role:           role,
	}
	err := l.sess.WithTx(ctx, func(tx *store.Tx) error {
		id, err := insertArtifact(ctx, tx, &m.Artifact)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO memberships (id, organisation_id, role) VALUES (?, ?, ?)`,
			id, m.OrganisationID, m.Role); err != nil {
			return store.Classify("grant membership", err)
		}
		touchID, _, err := appendTouchTx(ctx, tx, id, user.ID, fsm.Membership.Ref("active"), at)
		if err != nil {
			return err
		}
		return insertResource(ctx, tx, touchID, &domain.EmailAddress{Value: email})
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return m, nil
}

// ArtifactByUUID looks up an artifact's shared record by uuid.
func (l *Ledger) ArtifactByUUID(ctx context.Context, id string) (domain.Artifact, error) {
	var a domain.Artifact
	err := l.sess.QueryRow(ctx, `SELECT id, uuid, model, kind FROM artifacts WHERE uuid = ?`, id).
		Scan(&a.ID, &a.UUID, &a.Model, &a.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Artifact{}, &domain.NotFoundError{Entity: "artifact", Ref: id}
	}
	if err != nil {
		return domain.Artifact{}, store.Classify("artifact by uuid", err)
	}
	return a, nil
}

func (l *Ledger) componentByHandle(ctx context.Context, handle string) (domain.Component, error) {
	var c domain.Component
	err := l.sess.QueryRow(ctx,
		`SELECT a.id, a.uuid FROM actors a JOIN components c ON c.id = a.id WHERE a.handle = ?`,
		handle).Scan(&c.ID, &c.UUID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Component{}, &domain.NotFoundError{Entity: "component", Ref: handle}
	}
	if err != nil {
		return domain.Component{}, store.Classify("component by handle", err)
	}
	c.Handle = &handle
	c.Kind = domain.KindComponent
	return c, nil
}

func (l *Ledger) userByHandle(ctx context.Context, handle string) (domain.User, error) {
	var u domain.User
	err := l.sess.QueryRow(ctx,
		`SELECT a.id, a.uuid, u.surname FROM actors a JOIN users u ON u.id = a.id WHERE a.handle = ?`,
		handle).Scan(&u.ID, &u.UUID, &u.Surname)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, &domain.NotFoundError{Entity: "user", Ref: handle}
	}
	if err != nil {
		return domain.User{}, store.Classify("user by handle", err)
	}
	u.Handle = &handle
	u.Kind = domain.KindUser
	return u, nil
}

func newArtifact(kind domain.ArtifactKind) domain.Artifact {
	return domain.Artifact{UUID: uuid.NewString(), Model: domain.Model, Kind: kind}
}

func insertArtifact(ctx context.Context, tx *store.Tx, a *domain.Artifact) (int64, error) {
	id, err := store.InsertReturningID(ctx, tx,
		`INSERT INTO artifacts (uuid, model, kind) VALUES (?, ?, ?)`,
		a.UUID, a.Model, string(a.Kind))
	if err != nil {
		return 0, store.Classify("create artifact", err)
	}
	a.ID = id
	return id, nil
}

// appendTouchTx records a touch within an open transaction, returning the
// new touch id and the resolved state id.
func appendTouchTx(ctx context.Context, tx *store.Tx, artifactID, actorID int64, ref domain.StateRef, at time.Time) (int64, int64, error) {
	stateID, err := resolveState(ctx, tx, ref)
	if err != nil {
		return 0, 0, err
	}
	id, err := store.InsertReturningID(ctx, tx,
		`INSERT INTO touches (artifact_id, actor_id, state_id, at) VALUES (?, ?, ?, ?)`,
		artifactID, actorID, stateID, at.UTC().UnixNano())
	if err != nil {
		return 0, 0, store.Classify("append touch", err)
	}
	return id, stateID, nil
}

package store

import (
	"fmt"
	"strings"
)

// The persisted layout is joined-table: one base table per hierarchy root
// (actors, artifacts, resources, providers) plus one table per variant
// sharing the base surrogate key. Timestamps are stored as UTC nanoseconds
// in BIGINT columns so ordering and scanning behave identically on both
// backends.
//
// Statements are templated only where the dialects disagree on
// auto-incrementing keys.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS states (
	id %[1]s,
	machine TEXT NOT NULL,
	name TEXT NOT NULL,
	UNIQUE (machine, name)
);
CREATE TABLE IF NOT EXISTS actors (
	id %[1]s,
	uuid TEXT NOT NULL UNIQUE,
	handle TEXT UNIQUE,
	kind TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id BIGINT PRIMARY KEY REFERENCES actors (id) ON DELETE CASCADE,
	surname TEXT
);
CREATE TABLE IF NOT EXISTS components (
	id BIGINT PRIMARY KEY REFERENCES actors (id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS organisations (
	id %[1]s,
	uuid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS providers (
	id %[1]s,
	uuid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	kind TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS archives (
	id BIGINT PRIMARY KEY REFERENCES providers (id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS artifacts (
	id %[1]s,
	uuid TEXT NOT NULL UNIQUE,
	model TEXT NOT NULL,
	kind TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS hosts (
	id BIGINT PRIMARY KEY REFERENCES artifacts (id) ON DELETE CASCADE,
	organisation_id BIGINT NOT NULL REFERENCES organisations (id),
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS appliances (
	id BIGINT PRIMARY KEY REFERENCES artifacts (id) ON DELETE CASCADE,
	organisation_id BIGINT NOT NULL REFERENCES organisations (id)
);
CREATE TABLE IF NOT EXISTS memberships (
	id BIGINT PRIMARY KEY REFERENCES artifacts (id) ON DELETE CASCADE,
	organisation_id BIGINT NOT NULL REFERENCES organisations (id),
	role TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS registrations (
	id BIGINT PRIMARY KEY REFERENCES artifacts (id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS subscriptions (
	id BIGINT PRIMARY KEY REFERENCES artifacts (id) ON DELETE CASCADE,
	organisation_id BIGINT NOT NULL REFERENCES organisations (id) ON DELETE CASCADE,
	provider_id BIGINT NOT NULL REFERENCES providers (id),
	UNIQUE (organisation_id, provider_id)
);
CREATE TABLE IF NOT EXISTS catalogue_items (
	id %[1]s,
	uuid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL,
	note TEXT,
	logo TEXT,
	organisation_id BIGINT NOT NULL REFERENCES organisations (id)
);
CREATE TABLE IF NOT EXISTS touches (
	id %[1]s,
	artifact_id BIGINT NOT NULL REFERENCES artifacts (id) ON DELETE CASCADE,
	actor_id BIGINT NOT NULL REFERENCES actors (id),
	state_id BIGINT NOT NULL REFERENCES states (id),
	at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_touches_artifact_at ON touches (artifact_id, at);
CREATE INDEX IF NOT EXISTS idx_touches_state ON touches (state_id);
CREATE TABLE IF NOT EXISTS resources (
	id %[1]s,
	touch_id BIGINT NOT NULL REFERENCES touches (id) ON DELETE CASCADE,
	provider_id BIGINT REFERENCES providers (id),
	kind TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resources_touch ON resources (touch_id);
CREATE TABLE IF NOT EXISTS ipaddresses (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS nodes (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	uri TEXT
);
CREATE TABLE IF NOT EXISTS labels (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT
);
CREATE TABLE IF NOT EXISTS directories (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	description TEXT NOT NULL,
	mount_path TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS emailaddresses (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS publickeys (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS timeintervals (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	end_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS osimages (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS softwaredefinednetworks (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cataloguechoices (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT,
	logo TEXT,
	natrouted BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS bcryptedpasswords (
	id BIGINT PRIMARY KEY REFERENCES resources (id) ON DELETE CASCADE,
	value TEXT NOT NULL
);
`

// schemaStatements renders the DDL for a backend and splits it into
// individually executable statements.
func schemaStatements(backend Backend) []string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if backend == Postgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	rendered := fmt.Sprintf(schemaTemplate, pk)
	parts := strings.Split(rendered, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

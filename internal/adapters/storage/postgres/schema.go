package postgres

// schema таблицы движка синхронизации. Выполняется при каждом старте, поэтому IF NOT EXISTS
const schema = `
CREATE TABLE IF NOT EXISTS variant_lookup (
	sku        TEXT PRIMARY KEY,
	product_id BIGINT NOT NULL,
	variant_id BIGINT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS image_tracking (
	id               BIGSERIAL PRIMARY KEY,
	sku              TEXT NOT NULL,
	product_id       BIGINT NOT NULL,
	pim_image_url    TEXT NOT NULL,
	pim_filename     TEXT NOT NULL,
	remote_image_url TEXT NOT NULL DEFAULT '',
	remote_image_id  BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (sku, pim_filename)
);

CREATE TABLE IF NOT EXISTS import_runs (
	id           TEXT PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ,
	triggered_by TEXT NOT NULL,
	created      INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	duration_ms  BIGINT
);
CREATE INDEX IF NOT EXISTS import_runs_started_at_idx ON import_runs (started_at DESC);

CREATE TABLE IF NOT EXISTS import_items (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES import_runs (id) ON DELETE CASCADE,
	sku        TEXT NOT NULL,
	op         TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS import_items_run_id_idx ON import_items (run_id, id);

CREATE TABLE IF NOT EXISTS brands (
	id   BIGINT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS brands_name_idx ON brands (lower(name));

CREATE TABLE IF NOT EXISTS suppliers (
	id   BIGINT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS suppliers_name_idx ON suppliers (lower(name));

CREATE TABLE IF NOT EXISTS exclusions (
	sku        TEXT PRIMARY KEY,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

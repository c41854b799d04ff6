package database

// Schema is applied in order by Migrate.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS order_counters (
		tenant_id     TEXT   NOT NULL,
		day           DATE   NOT NULL,
		last_order_id BIGINT NOT NULL CHECK (last_order_id >= 0),
		PRIMARY KEY (tenant_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                   UUID PRIMARY KEY,
		tenant_id            TEXT        NOT NULL,
		day                  DATE        NOT NULL,
		daily_order_id       BIGINT      NOT NULL,
		order_number         TEXT        NOT NULL,
		items                JSONB       NOT NULL DEFAULT '[]',
		subtotal             NUMERIC(12,2) NOT NULL,
		tax_amount           NUMERIC(12,2) NOT NULL,
		tax_breakdown        JSONB       NOT NULL DEFAULT '[]',
		final_amount         NUMERIC(12,2) NOT NULL,
		status               TEXT        NOT NULL,
		table_number         TEXT        NOT NULL DEFAULT '',
		order_type           TEXT        NOT NULL,
		customer_info        JSONB       NOT NULL DEFAULT '{}',
		special_instructions TEXT        NOT NULL DEFAULT '',
		payment_method       TEXT        NOT NULL DEFAULT '',
		discount             NUMERIC(12,2) NOT NULL DEFAULT 0,
		final_total          NUMERIC(12,2) NOT NULL DEFAULT 0,
		created_by           TEXT        NOT NULL,
		updated_by           TEXT        NOT NULL DEFAULT '',
		created_at           TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL,
		billed_at            TIMESTAMPTZ,
		cancelled_at         TIMESTAMPTZ,
		UNIQUE (tenant_id, day, daily_order_id)
	)`,
	`CREATE INDEX IF NOT EXISTS orders_tenant_status_idx ON orders (tenant_id, status)`,
	`CREATE INDEX IF NOT EXISTS orders_tenant_table_idx ON orders (tenant_id, table_number)`,
	`CREATE INDEX IF NOT EXISTS orders_tenant_created_idx ON orders (tenant_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS floors (
		id         TEXT PRIMARY KEY,
		tenant_id  TEXT NOT NULL,
		name       TEXT NOT NULL,
		sort_order INT  NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS restaurant_tables (
		id               TEXT PRIMARY KEY,
		tenant_id        TEXT        NOT NULL,
		floor_id         TEXT        NOT NULL REFERENCES floors(id),
		name             TEXT        NOT NULL,
		status           TEXT        NOT NULL DEFAULT 'available',
		capacity         INT         NOT NULL DEFAULT 0,
		current_order_id TEXT,
		reservation      JSONB,
		occupied_at      TIMESTAMPTZ,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK ((status = 'occupied') = (current_order_id IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS restaurant_tables_tenant_name_idx ON restaurant_tables (tenant_id, lower(name))`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id           TEXT PRIMARY KEY,
		tenant_id    TEXT          NOT NULL,
		name         TEXT          NOT NULL,
		category     TEXT          NOT NULL DEFAULT '',
		price        NUMERIC(12,2) NOT NULL,
		variants     JSONB         NOT NULL DEFAULT '[]',
		is_available BOOLEAN       NOT NULL DEFAULT TRUE,
		is_deleted   BOOLEAN       NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_sessions (
		id                UUID PRIMARY KEY,
		tenant_id         TEXT        NOT NULL,
		user_id           TEXT        NOT NULL,
		role              TEXT        NOT NULL,
		status            TEXT        NOT NULL,
		started_at        TIMESTAMPTZ NOT NULL,
		ended_at          TIMESTAMPTZ,
		message_count     INT         NOT NULL DEFAULT 0,
		actions_performed JSONB       NOT NULL DEFAULT '[]',
		summary           TEXT        NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS conversation_sessions_user_idx ON conversation_sessions (tenant_id, user_id, started_at)`,
	`CREATE TABLE IF NOT EXISTS conversation_messages (
		id         UUID PRIMARY KEY,
		session_id UUID        NOT NULL REFERENCES conversation_sessions(id),
		role       TEXT        NOT NULL,
		content    TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS conversation_messages_session_idx ON conversation_messages (session_id, created_at)`,
}

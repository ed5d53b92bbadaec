package store

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          BIGSERIAL PRIMARY KEY,
		name        VARCHAR(100) NOT NULL,
		description TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGSERIAL PRIMARY KEY,
		name        VARCHAR(200) NOT NULL,
		description TEXT,
		price       NUMERIC(10,2) NOT NULL CHECK (price >= 0),
		stock       BIGINT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS products_category_id_idx ON products (category_id)`,
	`CREATE INDEX IF NOT EXISTS products_stock_idx ON products (stock)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		name        VARCHAR(100) NOT NULL,
		description TEXT NULL,
		created_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		name        VARCHAR(200) NOT NULL,
		description TEXT NULL,
		price       DECIMAL(10,2) NOT NULL,
		stock       BIGINT NOT NULL DEFAULT 0,
		category_id BIGINT NOT NULL,
		created_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		INDEX products_stock_idx (stock),
		CONSTRAINT products_price_check CHECK (price >= 0),
		CONSTRAINT products_stock_check CHECK (stock >= 0),
		CONSTRAINT products_category_fk FOREIGN KEY (category_id)
			REFERENCES categories (id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
}

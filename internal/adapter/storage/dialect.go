package storage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect captures what differs between the supported SQL backends.
type Dialect struct {
	Name       string
	DriverName string

	numbered   bool // $1, $2 placeholders instead of ?
	migrations []string
	uniqueErr  func(error) bool
}

var MySQL = Dialect{
	Name:       "mysql",
	DriverName: "mysql",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS inventory (
			id VARCHAR(36) PRIMARY KEY,
			owner_id VARCHAR(64) NOT NULL,
			product_name VARCHAR(255) NOT NULL,
			name_key VARCHAR(255) NOT NULL,
			price DECIMAL(12,2) NOT NULL,
			stock_level INT NOT NULL CHECK (stock_level >= 0),
			date_added DATE NOT NULL,
			version INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_inventory_owner_name (owner_id, name_key)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(36) PRIMARY KEY,
			owner_id VARCHAR(64) NOT NULL,
			client_name VARCHAR(255) NOT NULL,
			client_email VARCHAR(255) NOT NULL DEFAULT '',
			client_phone VARCHAR(32) NOT NULL DEFAULT '',
			order_date DATE NOT NULL,
			delivery_date DATE NULL,
			status VARCHAR(16) NOT NULL,
			total_price DECIMAL(12,2) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY idx_orders_owner_date (owner_id, order_date)
		)`,
		`CREATE TABLE IF NOT EXISTS ordered_products (
			id VARCHAR(36) PRIMARY KEY,
			order_id VARCHAR(36) NOT NULL,
			inventory_item_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			quantity INT NOT NULL CHECK (quantity > 0),
			price DECIMAL(12,2) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY idx_ordered_products_order (order_id)
		)`,
	},
	uniqueErr: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == 1062
	},
}

var Postgres = Dialect{
	Name:       "postgres",
	DriverName: "pgx",
	numbered:   true,
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS inventory (
			id VARCHAR(36) PRIMARY KEY,
			owner_id VARCHAR(64) NOT NULL,
			product_name VARCHAR(255) NOT NULL,
			name_key VARCHAR(255) NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			stock_level INTEGER NOT NULL CHECK (stock_level >= 0),
			date_added DATE NOT NULL,
			version INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			UNIQUE (owner_id, name_key)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(36) PRIMARY KEY,
			owner_id VARCHAR(64) NOT NULL,
			client_name VARCHAR(255) NOT NULL,
			client_email VARCHAR(255) NOT NULL DEFAULT '',
			client_phone VARCHAR(32) NOT NULL DEFAULT '',
			order_date DATE NOT NULL,
			delivery_date DATE,
			status VARCHAR(16) NOT NULL,
			total_price NUMERIC(12,2) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_owner_date ON orders(owner_id, order_date)`,
		`CREATE TABLE IF NOT EXISTS ordered_products (
			id VARCHAR(36) PRIMARY KEY,
			order_id VARCHAR(36) NOT NULL,
			inventory_item_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			price NUMERIC(12,2) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ordered_products_order ON ordered_products(order_id)`,
	},
	uniqueErr: func(err error) bool {
		var pe *pgconn.PgError
		return errors.As(err, &pe) && pe.Code == "23505"
	},
}

// DialectFor maps a DB_DRIVER value to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL, nil
	case "postgres", "pgx":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// DataSource prepares a DSN for sql.Open. MySQL needs parseTime so DATE and
// TIMESTAMP columns scan into time.Time.
func (d Dialect) DataSource(dsn string) (string, error) {
	if d.Name != MySQL.Name {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

package bootstrap

import (
	"context"
	"log"

	"github.com/gridbase/gridbase/internal/infrastructure/database"
)

// metaTableDDL defines the fixed meta-tables the platform stores its dynamic
// schema and data in. Statements are idempotent; running them on every start
// is safe.
var metaTableDDL = []string{
	`CREATE TABLE IF NOT EXISTS tables (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		display_format VARCHAR(1024) NULL,
		display_format_secondary VARCHAR(1024) NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_tables_name (name)
	)`,
	`CREATE TABLE IF NOT EXISTS columns (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		table_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		data_type VARCHAR(32) NOT NULL,
		is_list BOOLEAN NOT NULL DEFAULT FALSE,
		enum_id BIGINT NULL,
		reference_table_id BIGINT NULL,
		reference_link_table_id BIGINT NULL,
		required BOOLEAN NOT NULL DEFAULT FALSE,
		unique_flag BOOLEAN NOT NULL DEFAULT FALSE,
		searchable BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_columns_table_name (table_id, name),
		KEY idx_columns_table (table_id)
	)`,
	`CREATE TABLE IF NOT EXISTS enums (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_enums_name (name)
	)`,
	`CREATE TABLE IF NOT EXISTS enum_values (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		enum_id BIGINT NOT NULL,
		value VARCHAR(512) NOT NULL,
		UNIQUE KEY uq_enum_values (enum_id, value),
		KEY idx_enum_values_enum (enum_id)
	)`,
	`CREATE TABLE IF NOT EXISTS link_tables (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		from_table_id BIGINT NOT NULL,
		to_table_id BIGINT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_link_tables_name (name)
	)`,
	`CREATE TABLE IF NOT EXISTS link_columns (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		link_table_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		data_type VARCHAR(32) NOT NULL,
		enum_id BIGINT NULL,
		required BOOLEAN NOT NULL DEFAULT FALSE,
		unique_flag BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_link_columns (link_table_id, name),
		KEY idx_link_columns_table (link_table_id)
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		table_id BIGINT NOT NULL,
		data JSON NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_records_table (table_id)
	)`,
	`CREATE TABLE IF NOT EXISTS link_records (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		link_table_id BIGINT NOT NULL,
		from_record_id BIGINT NOT NULL,
		to_record_id BIGINT NOT NULL,
		data JSON NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_link_records_from (link_table_id, from_record_id),
		KEY idx_link_records_to (link_table_id, to_record_id),
		KEY idx_link_records_from_rec (from_record_id),
		KEY idx_link_records_to_rec (to_record_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_users_name (name)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id CHAR(36) PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		payload JSON NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		retry_count INT NOT NULL DEFAULT 0,
		last_error TEXT NULL,
		created_at DATETIME NOT NULL,
		processed_at DATETIME NULL,
		KEY idx_outbox_status (status, created_at)
	)`,
}

// InitializeSchema creates the fixed meta-tables if they do not exist yet
func InitializeSchema(ctx context.Context, db *database.Connection) error {
	log.Println("🔧 Initializing meta-table schema...")

	for _, stmt := range metaTableDDL {
		if _, err := db.DB().ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	log.Println("✅ Meta-table schema ready")
	return nil
}

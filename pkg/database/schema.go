package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the portal services
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	// Create extension for UUID generation
	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	// Create tables
	tables := []string{
		createActorsTable,
		createWorkflowRecordsTable,
		createAccessAuditLogTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Create indexes
	indexes := []string{
		createActorsIndexes,
		createWorkflowRecordsIndexes,
		createAccessAuditLogIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createActorsTable = `
		CREATE TABLE IF NOT EXISTS actors (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(100) NOT NULL,
			email VARCHAR(200) UNIQUE NOT NULL,
			role VARCHAR(50) NOT NULL,
			parent_id UUID REFERENCES actors(id),
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createWorkflowRecordsTable = `
		CREATE TABLE IF NOT EXISTS workflow_records (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			record_type VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			owner_doctor_id UUID,
			sales_rep_id UUID,
			distributor_id UUID,
			regional_distributor_id UUID,
			created_by UUID NOT NULL,
			patient_ref VARCHAR(100),
			summary TEXT,
			carrier VARCHAR(100),
			region VARCHAR(100),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createAccessAuditLogTable = `
		CREATE TABLE IF NOT EXISTS access_audit_log (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			actor_id UUID NOT NULL,
			actor_role VARCHAR(50) NOT NULL,
			action VARCHAR(100) NOT NULL,
			resource TEXT,
			target_role VARCHAR(50),
			on_behalf_of TEXT,
			metadata JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`
)

// SQL DDL statements for index creation
const (
	createActorsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_actors_parent_id ON actors(parent_id);
		CREATE INDEX IF NOT EXISTS idx_actors_role ON actors(role);
		CREATE INDEX IF NOT EXISTS idx_actors_email ON actors(email);`

	createWorkflowRecordsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_workflow_records_owner_doctor ON workflow_records(owner_doctor_id);
		CREATE INDEX IF NOT EXISTS idx_workflow_records_created_by ON workflow_records(created_by);
		CREATE INDEX IF NOT EXISTS idx_workflow_records_distributor ON workflow_records(distributor_id);
		CREATE INDEX IF NOT EXISTS idx_workflow_records_regional_distributor ON workflow_records(regional_distributor_id);
		CREATE INDEX IF NOT EXISTS idx_workflow_records_type_status ON workflow_records(record_type, status);
		CREATE INDEX IF NOT EXISTS idx_workflow_records_created_at ON workflow_records(created_at);`

	createAccessAuditLogIndexes = `
		CREATE INDEX IF NOT EXISTS idx_access_audit_actor_id ON access_audit_log(actor_id);
		CREATE INDEX IF NOT EXISTS idx_access_audit_action ON access_audit_log(action);
		CREATE INDEX IF NOT EXISTS idx_access_audit_created_at ON access_audit_log(created_at);`
)

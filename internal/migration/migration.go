package migration

import (
	"context"
	"fmt"

	"gomediate/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createStudiesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create mediation_studies table")
	}

	if err := r.createStudyTablesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create mediation_tables table")
	}

	if err := r.addStudyColumns(ctx, db); err != nil {
		return errors.Wrap(err, "failed to add mediation_studies columns")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createStudiesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS mediation_studies (
			id UUID PRIMARY KEY,
			kind VARCHAR(40) NOT NULL,
			dataset_name VARCHAR(255) NOT NULL DEFAULT '',
			variables JSONB NOT NULL,
			config JSONB NOT NULL,
			figure JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createStudyTablesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS mediation_tables (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			study_id UUID NOT NULL REFERENCES mediation_studies(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			payload JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE(study_id, name)
		)
	`)
	return err
}

func (r *MigrationRunner) addStudyColumns(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		DO $$
		BEGIN
			-- Add figure column if it doesn't exist
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'mediation_studies' AND column_name = 'figure'
			) THEN
				ALTER TABLE mediation_studies ADD COLUMN figure JSONB;
			END IF;

			-- Add dataset_name column if it doesn't exist
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'mediation_studies' AND column_name = 'dataset_name'
			) THEN
				ALTER TABLE mediation_studies ADD COLUMN dataset_name VARCHAR(255) NOT NULL DEFAULT '';
			END IF;
		END $$;
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		// Study indexes
		"CREATE INDEX IF NOT EXISTS idx_studies_kind ON mediation_studies(kind)",
		"CREATE INDEX IF NOT EXISTS idx_studies_created_at ON mediation_studies(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_studies_dataset_name ON mediation_studies(dataset_name)",

		// Study table indexes
		"CREATE INDEX IF NOT EXISTS idx_tables_study_id ON mediation_tables(study_id)",
		"CREATE INDEX IF NOT EXISTS idx_tables_study_position ON mediation_tables(study_id, position)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}

	return nil
}

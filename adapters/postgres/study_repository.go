package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gomediate/domain/core"
	"gomediate/domain/figure"
	"gomediate/domain/mediation"
	"gomediate/domain/table"
	"gomediate/ports"
)

// StudyRepositoryImpl implements StudyStore for PostgreSQL
type StudyRepositoryImpl struct {
	db *sqlx.DB
}

// NewStudyRepository creates a new PostgreSQL study repository
func NewStudyRepository(db *sqlx.DB) ports.StudyStore {
	return &StudyRepositoryImpl{db: db}
}

// SaveStudy upserts the study row and replaces its prediction tables.
func (r *StudyRepositoryImpl) SaveStudy(ctx context.Context, study *mediation.Study) error {
	if study == nil {
		return core.ErrEmptyData
	}

	variablesJSON, err := json.Marshal(study.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}
	configJSON, err := json.Marshal(study.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	var figureJSON []byte
	if study.Figure != nil {
		figureJSON, err = json.Marshal(study.Figure)
		if err != nil {
			return fmt.Errorf("failed to marshal figure: %w", err)
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mediation_studies (
			id, kind, dataset_name, variables, config, figure, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			dataset_name = EXCLUDED.dataset_name,
			variables = EXCLUDED.variables,
			config = EXCLUDED.config,
			figure = EXCLUDED.figure`,
		string(study.ID), string(study.Kind), study.DatasetName,
		variablesJSON, configJSON, figureJSON, study.CreatedAt.Time())
	if err != nil {
		return fmt.Errorf("failed to upsert study: %w", err)
	}

	// Replace tables so upserts never leave stale rows behind
	if _, err := tx.ExecContext(ctx, `DELETE FROM mediation_tables WHERE study_id = $1`, string(study.ID)); err != nil {
		return fmt.Errorf("failed to clear study tables: %w", err)
	}

	for i, named := range study.Tables {
		payload, err := json.Marshal(named.Table)
		if err != nil {
			return fmt.Errorf("failed to marshal table %s: %w", named.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mediation_tables (study_id, name, position, payload)
			VALUES ($1, $2, $3, $4)`,
			string(study.ID), named.Name, i, payload)
		if err != nil {
			return fmt.Errorf("failed to insert table %s: %w", named.Name, err)
		}
	}

	return tx.Commit()
}

// GetStudy retrieves a study with all of its prediction tables.
func (r *StudyRepositoryImpl) GetStudy(ctx context.Context, id core.StudyID) (*mediation.Study, error) {
	var (
		kind          string
		datasetName   string
		variablesJSON []byte
		configJSON    []byte
		figureJSON    []byte
		createdAt     time.Time
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT kind, dataset_name, variables, config, figure, created_at
		FROM mediation_studies
		WHERE id = $1
	`, string(id)).Scan(&kind, &datasetName, &variablesJSON, &configJSON, &figureJSON, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrStudyNotFound
		}
		return nil, err
	}

	study := &mediation.Study{
		ID:          id,
		Kind:        mediation.Kind(kind),
		DatasetName: datasetName,
		CreatedAt:   core.NewTimestamp(createdAt),
	}
	if err := json.Unmarshal(variablesJSON, &study.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}
	if err := json.Unmarshal(configJSON, &study.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(figureJSON) > 0 {
		var fig figure.Figure
		if err := json.Unmarshal(figureJSON, &fig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal figure: %w", err)
		}
		study.Figure = &fig
	}

	tables, err := r.loadTables(ctx, id)
	if err != nil {
		return nil, err
	}
	study.Tables = tables

	return study, nil
}

func (r *StudyRepositoryImpl) loadTables(ctx context.Context, id core.StudyID) ([]table.Named, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, payload
		FROM mediation_tables
		WHERE study_id = $1
		ORDER BY position ASC
	`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []table.Named
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, err
		}

		tbl := table.New()
		if err := json.Unmarshal(payload, tbl); err != nil {
			return nil, fmt.Errorf("failed to unmarshal table %s: %w", name, err)
		}
		tables = append(tables, table.Named{Name: name, Table: tbl})
	}

	return tables, rows.Err()
}

// ListStudies returns study summaries newest-first.
func (r *StudyRepositoryImpl) ListStudies(ctx context.Context, limit, offset int) ([]ports.StudySummary, error) {
	query := `
		SELECT id, kind, dataset_name, created_at
		FROM mediation_studies
		ORDER BY created_at DESC
	`

	var args []interface{}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ports.StudySummary
	for rows.Next() {
		var (
			id        string
			kind      string
			dataset   string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &kind, &dataset, &createdAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, ports.StudySummary{
			ID:          core.StudyID(id),
			Kind:        mediation.Kind(kind),
			DatasetName: dataset,
			CreatedAt:   core.NewTimestamp(createdAt),
		})
	}

	return summaries, rows.Err()
}

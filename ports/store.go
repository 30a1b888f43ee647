package ports

import (
	"context"

	"gomediate/domain/core"
	"gomediate/domain/mediation"
)

// StudySummary is the listing row for a persisted study.
type StudySummary struct {
	ID          core.StudyID   `json:"id"`
	Kind        mediation.Kind `json:"kind"`
	DatasetName string         `json:"dataset_name"`
	CreatedAt   core.Timestamp `json:"created_at"`
}

// StudyStore persists assembled studies. Saves are idempotent per
// study ID (upsert semantics).
type StudyStore interface {
	SaveStudy(ctx context.Context, study *mediation.Study) error
	GetStudy(ctx context.Context, id core.StudyID) (*mediation.Study, error)
	ListStudies(ctx context.Context, limit, offset int) ([]StudySummary, error)
}

package providers

import (
	"context"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
)

// TerminologyProvider defines the read operations used against a SNOMED CT
// terminology server. Every method returns either a value or an error that
// has already been normalized to *errors.AppError.
type TerminologyProvider interface {
	// SearchConcepts runs the compiled query for params at the given page
	SearchConcepts(ctx context.Context, params entities.SearchParams, offset, limit int) (*entities.SearchResult, error)

	// GetConcept returns the full browser view of a concept
	GetConcept(ctx context.Context, conceptID string) (*entities.ConceptDetail, error)

	// GetParents returns the inferred parents of a concept
	GetParents(ctx context.Context, conceptID string) ([]entities.Concept, error)

	// GetChildren returns the inferred children of a concept
	GetChildren(ctx context.Context, conceptID string) ([]entities.Concept, error)
}

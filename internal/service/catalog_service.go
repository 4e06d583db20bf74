package service

import (
	"errors"

	"github.com/cloudtrack/certprep/internal/catalog"
	"github.com/cloudtrack/certprep/internal/exam"
)

// ErrExamNotFound is returned for an exam id missing from the catalog.
var ErrExamNotFound = errors.New("exam not found")

// CatalogService serves exam definitions from the loaded catalog.
type CatalogService struct {
	catalog *catalog.Catalog
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(c *catalog.Catalog) *CatalogService {
	return &CatalogService{catalog: c}
}

// List returns every exam definition in catalog order.
func (s *CatalogService) List() []exam.Definition {
	return s.catalog.Definitions()
}

// Get returns the definition with the given id.
func (s *CatalogService) Get(id string) (exam.Definition, error) {
	def, ok := s.catalog.Definition(id)
	if !ok {
		return exam.Definition{}, ErrExamNotFound
	}
	return def, nil
}

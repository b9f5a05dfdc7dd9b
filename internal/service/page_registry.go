package service

import (
	"fmt"

	"messengerhub/internal/models"
)

// PageRegistry is the read-only table of configured Facebook pages.
// It is built once at start and never modified afterwards.
type PageRegistry struct {
	pages   map[string]models.PageConfig
	ordered []string // page ids in configuration order
}

// NewPageRegistry creates a registry from configuration. An empty page list is
// allowed; every inbound event is then skipped for lack of configuration.
func NewPageRegistry(pages []models.PageConfig) (*PageRegistry, error) {
	r := &PageRegistry{
		pages:   make(map[string]models.PageConfig, len(pages)),
		ordered: make([]string, 0, len(pages)),
	}

	for _, page := range pages {
		if page.ID == "" {
			return nil, fmt.Errorf("empty page id in page configuration")
		}
		if _, exists := r.pages[page.ID]; exists {
			return nil, fmt.Errorf("duplicate page id: %s", page.ID)
		}
		r.pages[page.ID] = page
		r.ordered = append(r.ordered, page.ID)
	}

	return r, nil
}

// Get returns the configuration of a page
func (r *PageRegistry) Get(pageID string) (models.PageConfig, bool) {
	page, ok := r.pages[pageID]
	return page, ok
}

// Pages returns every configured page in configuration order
func (r *PageRegistry) Pages() []models.PageConfig {
	pages := make([]models.PageConfig, 0, len(r.ordered))
	for _, id := range r.ordered {
		pages = append(pages, r.pages[id])
	}
	return pages
}

func (r *PageRegistry) Count() int {
	return len(r.pages)
}

// InvalidTokenPages returns the ids of pages whose access token is missing or a placeholder
func (r *PageRegistry) InvalidTokenPages() []string {
	var invalid []string
	for _, id := range r.ordered {
		if !r.pages[id].HasValidToken() {
			invalid = append(invalid, id)
		}
	}
	return invalid
}

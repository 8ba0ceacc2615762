package search

import (
	"strings"

	"github.com/hyperjump/devflow/internal/models"
)

// ProcessQuery trims the query text, then validates it and clamps the result count.
func ProcessQuery(query *models.SearchQuery) error {
	query.Query = strings.TrimSpace(query.Query)
	return query.Validate()
}

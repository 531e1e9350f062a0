// internal/jobboard/search/queries.go
package search

import (
	"strings"

	"job-board/internal/models"
)

// indexMapping types the fields the search query filters on.
const indexMapping = `{
	"mappings": {
		"properties": {
			"id":         {"type": "long"},
			"user_id":    {"type": "keyword"},
			"title":      {"type": "text"},
			"company":    {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"location":   {"type": "keyword"},
			"jobtype":    {"type": "keyword"},
			"workplace":  {"type": "keyword"},
			"jobdesc":    {"type": "text"},
			"status":     {"type": "keyword"},
			"created_at": {"type": "date"}
		}
	}
}`

// buildSearchQuery matches q on title, company and description and hides
// closed jobs and, when viewerID is set, the viewer's own postings.
func buildSearchQuery(q, viewerID string, size int) map[string]interface{} {
	mustClauses := []interface{}{}
	if q = strings.TrimSpace(q); q != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"title^3", "company^2", "jobdesc"},
				"type":   "best_fields",
			},
		})
	} else {
		mustClauses = append(mustClauses, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	mustNot := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"status": string(models.JobStatusClosed)}},
	}
	if viewerID != "" {
		mustNot = append(mustNot, map[string]interface{}{"term": map[string]interface{}{"user_id": viewerID}})
	}

	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":     mustClauses,
				"must_not": mustNot,
			},
		},
	}
	if q == "" {
		query["sort"] = []interface{}{map[string]interface{}{"created_at": "desc"}}
	}
	return query
}

// Package search keeps an Elasticsearch copy of postjob for free-text search.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"job-board/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndex = "jobs"

// Index is the jobs index with document-level writes.
type Index struct {
	client *elasticsearch.Client
	name   string
}

func NewIndex(client *elasticsearch.Client, name string) *Index {
	if name == "" {
		name = DefaultIndex
	}
	return &Index{client: client, name: name}
}

func (i *Index) Name() string { return i.name }

// Ensure creates the index with its mapping when it does not exist yet.
func (i *Index) Ensure(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.name}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.name, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.client.Indices.Create(i.name,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)))
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.name, err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("create index %s: %s", i.name, res.String())
	}
	return nil
}

func (i *Index) Put(ctx context.Context, job *models.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %d: %w", job.ID, err)
	}
	res, err := i.client.Index(i.name, bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(strconv.FormatInt(job.ID, 10)))
	if err != nil {
		return fmt.Errorf("index job %d: %w", job.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index job %d: %s", job.ID, res.String())
	}
	return nil
}

// Delete removes a job document; a missing document is not an error.
func (i *Index) Delete(ctx context.Context, jobID int64) error {
	res, err := i.client.Delete(i.name, strconv.FormatInt(jobID, 10), i.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete job %d: %w", jobID, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete job %d: %s", jobID, res.String())
	}
	return nil
}

// Prune deletes every document whose id is not in keep.
func (i *Index) Prune(ctx context.Context, keep []int64) error {
	values := make([]string, len(keep))
	for n, id := range keep {
		values[n] = strconv.FormatInt(id, 10)
	}
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must_not": map[string]interface{}{
					"ids": map[string]interface{}{"values": values},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("encode prune query: %w", err)
	}
	res, err := i.client.DeleteByQuery([]string{i.name}, bytes.NewReader(body),
		i.client.DeleteByQuery.WithContext(ctx),
		i.client.DeleteByQuery.WithConflicts("proceed"))
	if err != nil {
		return fmt.Errorf("prune index %s: %w", i.name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("prune index %s: %s", i.name, res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Job `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (i *Index) search(ctx context.Context, query map[string]interface{}) ([]models.Job, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	req := esapi.SearchRequest{
		Index: []string{i.name},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	jobs := make([]models.Job, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		jobs = append(jobs, h.Source)
	}
	return jobs, nil
}

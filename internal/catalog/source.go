// internal/catalog/source.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"dealerdesk/internal/models"
	"dealerdesk/internal/storage"
)

// Source loads the full inventory from backing storage.
type Source interface {
	Load(ctx context.Context) ([]models.CarListing, error)
}

// PostgresSource reads the catalog from the cars table.
type PostgresSource struct {
	repo *storage.CatalogRepository
}

func NewPostgresSource(repo *storage.CatalogRepository) *PostgresSource {
	return &PostgresSource{repo: repo}
}

func (s *PostgresSource) Load(ctx context.Context) ([]models.CarListing, error) {
	return s.repo.ListAvailable(ctx)
}

// ElasticsearchSource reads the catalog from a search index. Used by
// dealerships that sync inventory from an external feed into ES.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSource(client *elasticsearch.Client, index string) *ElasticsearchSource {
	return &ElasticsearchSource{client: client, index: index}
}

func (s *ElasticsearchSource) Load(ctx context.Context) ([]models.CarListing, error) {
	query := `{"size": 1000, "query": {"term": {"available": true}}}`
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("catalog search returned %s: %s", res.Status(), string(body))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string            `json:"_id"`
				Source models.CarListing `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode catalog search response: %w", err)
	}

	out := make([]models.CarListing, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		c := hit.Source
		if c.ID == "" {
			c.ID = hit.ID
		}
		out = append(out, c)
	}
	return out, nil
}

// StaticSource serves a fixed listing set. Used in tests and when the
// service runs without external storage.
type StaticSource struct {
	cars []models.CarListing
}

func NewStaticSource(cars []models.CarListing) *StaticSource {
	return &StaticSource{cars: cars}
}

func (s *StaticSource) Load(_ context.Context) ([]models.CarListing, error) {
	return s.cars, nil
}

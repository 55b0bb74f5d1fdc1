// Package stores serves the physical store directory, searchable by name
// or location, backed by an Elasticsearch index.
package stores

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/client"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

// Location is one physical store.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Phone    string `json:"phone"`
	WhatsApp string `json:"whatsapp"`
	Hours    string `json:"hours"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Location `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Service wraps the Elasticsearch store index.
type Service struct {
	es    *client.ESClient
	index string
}

func NewService(es *client.ESClient, index string) *Service {
	return &Service{es: es, index: index}
}

// Search returns stores matching q across name, address, city and state.
// An empty q lists everything.
func (s *Service) Search(ctx context.Context, q string) ([]Location, error) {
	var query map[string]interface{}
	if q == "" {
		query = map[string]interface{}{
			"query": map[string]interface{}{
				"match_all": map[string]interface{}{},
			},
			"size": 50,
		}
	} else {
		query = map[string]interface{}{
			"query": map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":     q,
					"fields":    []string{"name^2", "address", "city", "state"},
					"fuzziness": "AUTO",
				},
			},
			"size": 50,
		}
	}

	res, err := s.es.Search(ctx, s.index, query)
	if err != nil {
		return nil, fmt.Errorf("store search failed: %w", err)
	}

	var parsed searchResponse
	if err := s.es.ParseResponse(res, &parsed); err != nil {
		return nil, fmt.Errorf("store search parse failed: %w", err)
	}

	locations := make([]Location, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		locations = append(locations, hit.Source)
	}

	util.Debug("Store search completed",
		zap.String("query", q),
		zap.Int("results", len(locations)))
	return locations, nil
}

// Index writes or replaces one store document.
func (s *Service) Index(ctx context.Context, loc Location) error {
	res, err := s.es.IndexDocument(ctx, s.index, loc.ID, loc)
	if err != nil {
		return fmt.Errorf("store index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("store index error: %s", res.String())
	}
	return nil
}

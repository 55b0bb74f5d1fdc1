package scylla

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/catalog"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

// catalogDocumentName is the single row key; the catalog is one document.
const catalogDocumentName = "price-data"

// CatalogRepository persists the catalog document in the
// catalog_documents table as a JSON payload.
type CatalogRepository struct {
	client *ScyllaClient
}

func NewCatalogRepository(client *ScyllaClient) *CatalogRepository {
	return &CatalogRepository{client: client}
}

func (r *CatalogRepository) Load(ctx context.Context) (*catalog.Data, bool, error) {
	var payload string
	var updatedAt time.Time

	query := r.client.Prepared.GetCatalog.Bind(catalogDocumentName).WithContext(ctx)
	if err := r.client.ScanWithRetry(query, &payload, &updatedAt); err != nil {
		if err == gocql.ErrNotFound {
			return nil, false, nil
		}
		util.Error("Failed to load catalog document", zap.Error(err))
		return nil, false, fmt.Errorf("failed to load catalog: %w", err)
	}

	var data catalog.Data
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, false, fmt.Errorf("failed to decode catalog payload: %w", err)
	}
	return &data, true, nil
}

func (r *CatalogRepository) Save(ctx context.Context, data *catalog.Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode catalog payload: %w", err)
	}

	query := r.client.Prepared.UpsertCatalog.
		Bind(catalogDocumentName, string(payload), time.Now().UTC()).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to save catalog document", zap.Error(err))
		return fmt.Errorf("failed to save catalog: %w", err)
	}

	util.Info("Catalog document persisted",
		zap.Int("bytes", len(payload)))
	return nil
}

// Meta reports whether the catalog document exists and when it was last
// written, without reading the payload.
func (r *CatalogRepository) Meta(ctx context.Context) (bool, time.Time, error) {
	var updatedAt time.Time

	query := r.client.Prepared.GetCatalogMeta.Bind(catalogDocumentName).WithContext(ctx)
	if err := r.client.ScanWithRetry(query, &updatedAt); err != nil {
		if err == gocql.ErrNotFound {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, fmt.Errorf("failed to read catalog meta: %w", err)
	}
	return true, updatedAt, nil
}

// Seed writes the default catalog only when no document exists yet. The
// existence probe reads the row's updated_at, not the full payload.
func (r *CatalogRepository) Seed(ctx context.Context) (bool, error) {
	found, _, err := r.Meta(ctx)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if err := r.Save(ctx, catalog.SeedData()); err != nil {
		return false, err
	}
	return true, nil
}

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackesh4086/spr-price-check/internal/store"
)

// catalogTTL keeps the document effectively permanent while still letting
// the store expire it if the service is abandoned.
const catalogTTL = 365 * 24 * time.Hour

// StoreRepository persists the catalog document as one JSON value in the
// key-value store. Used when no Scylla cluster is configured.
type StoreRepository struct {
	kv store.Store
}

func NewStoreRepository(kv store.Store) *StoreRepository {
	return &StoreRepository{kv: kv}
}

func (r *StoreRepository) Load(ctx context.Context) (*Data, bool, error) {
	raw, ok, err := r.kv.Get(ctx, store.CatalogDataKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read catalog: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return &data, true, nil
}

func (r *StoreRepository) Save(ctx context.Context, data *Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := r.kv.Set(ctx, store.CatalogDataKey, string(raw), catalogTTL); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

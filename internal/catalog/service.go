package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/util"
)

var (
	ErrNotFound      = errors.New("catalog entry not found")
	ErrAlreadyExists = errors.New("catalog entry already exists")
)

// Service owns catalog reads and admin mutations. Reads go through the
// cache; every mutation rewrites the whole document and invalidates the
// cache wholesale.
type Service struct {
	cache *Cache
	repo  Repository

	mu sync.Mutex
}

func NewService(cache *Cache, repo Repository) *Service {
	return &Service{cache: cache, repo: repo}
}

// Data returns the current catalog document.
func (s *Service) Data(ctx context.Context) (*Data, error) {
	return s.cache.GetOrLoad(ctx)
}

// Models lists all models in stored (sorted) order.
func (s *Service) Models(ctx context.Context) ([]Model, error) {
	data, err := s.cache.GetOrLoad(ctx)
	if err != nil {
		return nil, err
	}
	return data.Models, nil
}

// Issues lists all repairable issues.
func (s *Service) Issues(ctx context.Context) ([]Issue, error) {
	data, err := s.cache.GetOrLoad(ctx)
	if err != nil {
		return nil, err
	}
	return data.Issues, nil
}

// ValidModelID reports whether modelID names a known model.
func (s *Service) ValidModelID(ctx context.Context, modelID string) (bool, error) {
	data, err := s.cache.GetOrLoad(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range data.Models {
		if m.ID == modelID {
			return true, nil
		}
	}
	return false, nil
}

// ValidIssueID reports whether issueID names a known issue.
func (s *Service) ValidIssueID(ctx context.Context, issueID string) (bool, error) {
	data, err := s.cache.GetOrLoad(ctx)
	if err != nil {
		return false, err
	}
	for _, i := range data.Issues {
		if i.ID == issueID {
			return true, nil
		}
	}
	return false, nil
}

// GetQuote resolves the price entry for a model+issue pair, with the
// display string already rendered. ErrNotFound when the model, issue or
// price entry is missing.
func (s *Service) GetQuote(ctx context.Context, modelID, issueID string) (*Quote, error) {
	data, err := s.cache.GetOrLoad(ctx)
	if err != nil {
		return nil, err
	}

	var model *Model
	for i := range data.Models {
		if data.Models[i].ID == modelID {
			model = &data.Models[i]
			break
		}
	}
	var issue *Issue
	for i := range data.Issues {
		if data.Issues[i].ID == issueID {
			issue = &data.Issues[i]
			break
		}
	}
	if model == nil || issue == nil {
		return nil, ErrNotFound
	}

	for _, p := range data.Prices {
		if p.ModelID == modelID && p.IssueID == issueID {
			return &Quote{
				Brand:          data.Brand,
				Model:          *model,
				Issue:          *issue,
				Pricing:        p,
				Display:        FormatPrice(p, data.Currency),
				Currency:       data.Currency,
				Disclaimer:     data.Disclaimer,
				WhatsAppNumber: data.WhatsAppNumber,
			}, nil
		}
	}
	return nil, ErrNotFound
}

// ReplaceData swaps in an entirely new catalog document.
func (s *Service) ReplaceData(ctx context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, data)
}

// UpdateMetadata changes the document-level fields; empty strings are
// left as-is.
func (s *Service) UpdateMetadata(ctx context.Context, brand, currency, whatsappNumber, disclaimer string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	if brand != "" {
		data.Brand = brand
	}
	if currency != "" {
		data.Currency = currency
	}
	if whatsappNumber != "" {
		data.WhatsAppNumber = whatsappNumber
	}
	if disclaimer != "" {
		data.Disclaimer = disclaimer
	}
	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// AddModel appends a model. Duplicate ids are rejected.
func (s *Service) AddModel(ctx context.Context, model Model) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range data.Models {
		if m.ID == model.ID {
			return nil, fmt.Errorf("%w: model %q", ErrAlreadyExists, model.ID)
		}
	}
	data.Models = append(data.Models, model)
	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// UpdateModel edits a model in place. Renaming the id cascades into the
// price matrix.
func (s *Service) UpdateModel(ctx context.Context, id string, updated Model) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, m := range data.Models {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: model %q", ErrNotFound, id)
	}

	if updated.ID != "" && updated.ID != id {
		for _, m := range data.Models {
			if m.ID == updated.ID {
				return nil, fmt.Errorf("%w: model %q", ErrAlreadyExists, updated.ID)
			}
		}
		for i := range data.Prices {
			if data.Prices[i].ModelID == id {
				data.Prices[i].ModelID = updated.ID
			}
		}
		data.Models[idx].ID = updated.ID
	}
	if updated.Name != "" {
		data.Models[idx].Name = updated.Name
	}
	if updated.Brand != "" {
		data.Models[idx].Brand = updated.Brand
	}
	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteModel removes a model and every price entry referencing it.
func (s *Service) DeleteModel(ctx context.Context, id string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, m := range data.Models {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: model %q", ErrNotFound, id)
	}

	data.Models = append(data.Models[:idx], data.Models[idx+1:]...)
	kept := data.Prices[:0]
	for _, p := range data.Prices {
		if p.ModelID != id {
			kept = append(kept, p)
		}
	}
	data.Prices = kept

	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// AddIssue appends an issue. Duplicate ids are rejected.
func (s *Service) AddIssue(ctx context.Context, issue Issue) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	for _, i := range data.Issues {
		if i.ID == issue.ID {
			return nil, fmt.Errorf("%w: issue %q", ErrAlreadyExists, issue.ID)
		}
	}
	data.Issues = append(data.Issues, issue)
	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// UpdateIssue edits an issue; renaming the id cascades into prices.
func (s *Service) UpdateIssue(ctx context.Context, id string, updated Issue) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, iss := range data.Issues {
		if iss.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: issue %q", ErrNotFound, id)
	}

	if updated.ID != "" && updated.ID != id {
		for _, iss := range data.Issues {
			if iss.ID == updated.ID {
				return nil, fmt.Errorf("%w: issue %q", ErrAlreadyExists, updated.ID)
			}
		}
		for i := range data.Prices {
			if data.Prices[i].IssueID == id {
				data.Prices[i].IssueID = updated.ID
			}
		}
		data.Issues[idx].ID = updated.ID
	}
	if updated.Name != "" {
		data.Issues[idx].Name = updated.Name
	}
	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteIssue removes an issue and every price entry referencing it.
func (s *Service) DeleteIssue(ctx context.Context, id string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, iss := range data.Issues {
		if iss.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: issue %q", ErrNotFound, id)
	}

	data.Issues = append(data.Issues[:idx], data.Issues[idx+1:]...)
	kept := data.Prices[:0]
	for _, p := range data.Prices {
		if p.IssueID != id {
			kept = append(kept, p)
		}
	}
	data.Prices = kept

	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// AddPrice inserts a price entry. The model and issue must exist and the
// cell must be empty.
func (s *Service) AddPrice(ctx context.Context, price Price) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	if !containsModel(data, price.ModelID) {
		return nil, fmt.Errorf("%w: model %q", ErrNotFound, price.ModelID)
	}
	if !containsIssue(data, price.IssueID) {
		return nil, fmt.Errorf("%w: issue %q", ErrNotFound, price.IssueID)
	}
	for _, p := range data.Prices {
		if p.ModelID == price.ModelID && p.IssueID == price.IssueID {
			return nil, fmt.Errorf("%w: price for %q/%q", ErrAlreadyExists, price.ModelID, price.IssueID)
		}
	}
	data.Prices = append(data.Prices, price)
	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// UpdatePrice edits an existing price cell. The model/issue ids of the
// cell are immutable; delete and re-add to move a price.
func (s *Service) UpdatePrice(ctx context.Context, modelID, issueID string, updated Price) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, p := range data.Prices {
		if p.ModelID == modelID && p.IssueID == issueID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: price for %q/%q", ErrNotFound, modelID, issueID)
	}

	updated.ModelID = modelID
	updated.IssueID = issueID
	data.Prices[idx] = updated

	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// DeletePrice removes one price cell.
func (s *Service) DeletePrice(ctx context.Context, modelID, issueID string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, p := range data.Prices {
		if p.ModelID == modelID && p.IssueID == issueID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: price for %q/%q", ErrNotFound, modelID, issueID)
	}

	data.Prices = append(data.Prices[:idx], data.Prices[idx+1:]...)
	if err := s.save(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// loadForUpdate reads a fresh document straight from the repository so
// mutations never edit the cached copy in place.
func (s *Service) loadForUpdate(ctx context.Context) (*Data, error) {
	data, found, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		data = SeedData()
	}
	return data, nil
}

func (s *Service) save(ctx context.Context, data *Data) error {
	SortModels(data.Models, data.Brands)
	if err := s.repo.Save(ctx, data); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	s.cache.InvalidateAll()
	util.Info("Catalog saved",
		zap.Int("models", len(data.Models)),
		zap.Int("issues", len(data.Issues)),
		zap.Int("prices", len(data.Prices)))
	return nil
}

func containsModel(data *Data, id string) bool {
	for _, m := range data.Models {
		if m.ID == id {
			return true
		}
	}
	return false
}

func containsIssue(data *Data, id string) bool {
	for _, i := range data.Issues {
		if i.ID == id {
			return true
		}
	}
	return false
}

package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *fakeRepo) {
	repo := &fakeRepo{data: SeedData()}
	cache, _ := newTestCache(repo)
	return NewService(cache, repo), repo
}

func TestGetQuote(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	quote, err := svc.GetQuote(ctx, "iphone-11", "screen")
	require.NoError(t, err)
	assert.Equal(t, "iPhone 11", quote.Model.Name)
	assert.Equal(t, "Screen replacement", quote.Issue.Name)
	assert.Equal(t, "RM 280", quote.Display)
	assert.Equal(t, "RM", quote.Currency)
	assert.NotEmpty(t, quote.Disclaimer)
	assert.NotEmpty(t, quote.WhatsAppNumber)
}

func TestGetQuoteDisplayVariants(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	quote, err := svc.GetQuote(ctx, "iphone-12", "screen")
	require.NoError(t, err)
	assert.Equal(t, "RM 350 - 480", quote.Display)

	quote, err = svc.GetQuote(ctx, "iphone-13", "charging-port")
	require.NoError(t, err)
	assert.Equal(t, "From RM 120", quote.Display)

	quote, err = svc.GetQuote(ctx, "iphone-13-pro", "screen")
	require.NoError(t, err)
	assert.Equal(t, "Price TBD", quote.Display)

	quote, err = svc.GetQuote(ctx, "iphone-11", "diagnosis")
	require.NoError(t, err)
	assert.Equal(t, "FREE", quote.Display)
}

func TestGetQuoteNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.GetQuote(ctx, "nokia-3310", "screen")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetQuote(ctx, "iphone-11", "teleporter")
	assert.ErrorIs(t, err, ErrNotFound)

	// Model and issue exist but the price cell is empty.
	_, err = svc.GetQuote(ctx, "iphone-12", "battery")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	ok, err := svc.ValidModelID(ctx, "iphone-11")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.ValidModelID(ctx, "nokia-3310")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.ValidIssueID(ctx, "battery")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.ValidIssueID(ctx, "teleporter")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddModel(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	data, err := svc.AddModel(ctx, Model{ID: "iphone-14", Name: "iPhone 14", Brand: "apple"})
	require.NoError(t, err)
	assert.Len(t, data.Models, 5)

	// Save keeps the stored document sorted.
	ids := make([]string, len(repo.data.Models))
	for i, m := range repo.data.Models {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"iphone-11", "iphone-12", "iphone-13", "iphone-13-pro", "iphone-14"}, ids)

	_, err = svc.AddModel(ctx, Model{ID: "iphone-14", Name: "iPhone 14", Brand: "apple"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMutationInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	models, err := svc.Models(ctx)
	require.NoError(t, err)
	require.Len(t, models, 4)

	_, err = svc.AddModel(ctx, Model{ID: "iphone-14", Name: "iPhone 14", Brand: "apple"})
	require.NoError(t, err)

	models, err = svc.Models(ctx)
	require.NoError(t, err)
	assert.Len(t, models, 5)
}

func TestUpdateModelRenameCascades(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	data, err := svc.UpdateModel(ctx, "iphone-11", Model{ID: "iphone-11-v2"})
	require.NoError(t, err)

	for _, m := range data.Models {
		assert.NotEqual(t, "iphone-11", m.ID)
	}
	renamed := 0
	for _, p := range data.Prices {
		assert.NotEqual(t, "iphone-11", p.ModelID)
		if p.ModelID == "iphone-11-v2" {
			renamed++
		}
	}
	assert.Equal(t, 3, renamed)

	_, err = svc.UpdateModel(ctx, "iphone-12", Model{ID: "iphone-13"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = svc.UpdateModel(ctx, "nokia-3310", Model{Name: "Nokia"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteModelCascades(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	data, err := svc.DeleteModel(ctx, "iphone-11")
	require.NoError(t, err)

	assert.Len(t, data.Models, 3)
	for _, p := range data.Prices {
		assert.NotEqual(t, "iphone-11", p.ModelID)
	}
	assert.Len(t, data.Prices, 3)

	_, err = svc.DeleteModel(ctx, "iphone-11")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssueCRUD(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.AddIssue(ctx, Issue{ID: "water-damage", Name: "Water damage"})
	require.NoError(t, err)
	_, err = svc.AddIssue(ctx, Issue{ID: "water-damage", Name: "Water damage"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	data, err := svc.UpdateIssue(ctx, "screen", Issue{ID: "screen-replacement"})
	require.NoError(t, err)
	for _, p := range data.Prices {
		assert.NotEqual(t, "screen", p.IssueID)
	}

	data, err = svc.DeleteIssue(ctx, "battery")
	require.NoError(t, err)
	for _, p := range data.Prices {
		assert.NotEqual(t, "battery", p.IssueID)
	}
}

func TestPriceCRUD(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.AddPrice(ctx, Price{ModelID: "iphone-12", IssueID: "battery", Type: PriceFixed, Price: IntPtr(180)})
	require.NoError(t, err)

	_, err = svc.AddPrice(ctx, Price{ModelID: "iphone-12", IssueID: "battery", Type: PriceFixed, Price: IntPtr(200)})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = svc.AddPrice(ctx, Price{ModelID: "nokia-3310", IssueID: "battery", Type: PriceTBD})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddPrice(ctx, Price{ModelID: "iphone-12", IssueID: "teleporter", Type: PriceTBD})
	assert.ErrorIs(t, err, ErrNotFound)

	// The cell's ids are immutable on update.
	data, err := svc.UpdatePrice(ctx, "iphone-12", "battery", Price{ModelID: "other", IssueID: "other", Type: PriceFixed, Price: IntPtr(220)})
	require.NoError(t, err)
	found := false
	for _, p := range data.Prices {
		if p.ModelID == "iphone-12" && p.IssueID == "battery" {
			found = true
			assert.Equal(t, 220, *p.Price)
		}
	}
	assert.True(t, found)

	_, err = svc.DeletePrice(ctx, "iphone-12", "battery")
	require.NoError(t, err)
	_, err = svc.DeletePrice(ctx, "iphone-12", "battery")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMetadata(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	data, err := svc.UpdateMetadata(ctx, "", "MYR", "", "New disclaimer")
	require.NoError(t, err)
	assert.Equal(t, "MYR", data.Currency)
	assert.Equal(t, "New disclaimer", data.Disclaimer)
	// Untouched fields keep their values.
	assert.Equal(t, "SPR Gadget", data.Brand)
}

func TestReplaceData(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	replacement := &Data{
		Brand:    "Other Shop",
		Currency: "SGD",
		Brands:   []Brand{{ID: "apple", Name: "Apple"}},
		Models:   []Model{{ID: "iphone-16", Name: "iPhone 16", Brand: "apple"}},
		Issues:   []Issue{{ID: "screen", Name: "Screen"}},
		Prices:   []Price{{ModelID: "iphone-16", IssueID: "screen", Type: PriceFixed, Price: IntPtr(500)}},
	}
	require.NoError(t, svc.ReplaceData(ctx, replacement))
	assert.Equal(t, "Other Shop", repo.data.Brand)

	quote, err := svc.GetQuote(ctx, "iphone-16", "screen")
	require.NoError(t, err)
	assert.Equal(t, "SGD 500", quote.Display)
}

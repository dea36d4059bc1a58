package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/service"
)

type mockCatalogFlow struct {
	mock.Mock
}

func (m *mockCatalogFlow) PublicPageProducts(ctx context.Context) ([]models.PageProduct, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]models.PageProduct)
	return products, args.Error(1)
}

func (m *mockCatalogFlow) PublicShopItems(ctx context.Context) ([]models.ShopItem, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]models.ShopItem)
	return items, args.Error(1)
}

func (m *mockCatalogFlow) AdminPageProducts(ctx context.Context) ([]models.PageProduct, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]models.PageProduct)
	return products, args.Error(1)
}

func (m *mockCatalogFlow) AdminShopItems(ctx context.Context) ([]models.ShopItem, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]models.ShopItem)
	return items, args.Error(1)
}

func (m *mockCatalogFlow) CreatePageProduct(ctx context.Context, in service.PageProductInput) (*models.PageProduct, error) {
	args := m.Called(ctx, in)
	product, _ := args.Get(0).(*models.PageProduct)
	return product, args.Error(1)
}

func (m *mockCatalogFlow) UpdatePageProduct(ctx context.Context, id int64, in service.PageProductInput) (*models.PageProduct, error) {
	args := m.Called(ctx, id, in)
	product, _ := args.Get(0).(*models.PageProduct)
	return product, args.Error(1)
}

func (m *mockCatalogFlow) DeletePageProduct(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCatalogFlow) GetShopItem(ctx context.Context, id int64) (*models.ShopItem, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*models.ShopItem)
	return item, args.Error(1)
}

func (m *mockCatalogFlow) CreateShopItem(ctx context.Context, in service.ShopItemInput) (*models.ShopItem, error) {
	args := m.Called(ctx, in)
	item, _ := args.Get(0).(*models.ShopItem)
	return item, args.Error(1)
}

func (m *mockCatalogFlow) UpdateShopItem(ctx context.Context, id int64, in service.ShopItemInput) (*models.ShopItem, error) {
	args := m.Called(ctx, id, in)
	item, _ := args.Get(0).(*models.ShopItem)
	return item, args.Error(1)
}

func (m *mockCatalogFlow) DeleteShopItem(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCatalogFlow) ReplacePacks(ctx context.Context, itemID int64, in []service.PackInput) ([]models.PackPricing, error) {
	args := m.Called(ctx, itemID, in)
	packs, _ := args.Get(0).([]models.PackPricing)
	return packs, args.Error(1)
}

func TestCatalogHandler_PublicLists(t *testing.T) {
	flow := new(mockCatalogFlow)
	flow.On("PublicPageProducts", mock.Anything).Return(nil, nil)
	flow.On("PublicShopItems", mock.Anything).Return([]models.ShopItem{{ID: 1, Name: "Biochar"}}, nil)

	h := NewCatalogHandler(flow)
	r := newTestEngine(t)
	r.GET("/api/products-page", h.ListPageProducts)
	r.GET("/api/shop-items", h.ListShopItems)

	w := doGet(r, "/api/products-page")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"products":[]}`, w.Body.String())

	w = doGet(r, "/api/shop-items")
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeBody(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Biochar", items[0].(map[string]any)["name"])
}

func TestCatalogHandler_AdminCreateShopItem(t *testing.T) {
	active := false
	flow := new(mockCatalogFlow)
	flow.On("CreateShopItem", mock.Anything, mock.MatchedBy(func(in service.ShopItemInput) bool {
		return in.Name == "Biochar" && in.Price == 499 && in.IsActive != nil && !*in.IsActive &&
			assert.ObjectsAreEqual([]string{"organic", "5kg"}, in.Features)
	})).Return(&models.ShopItem{ID: 8, Name: "Biochar", Price: 499, IsActive: active}, nil)

	r := newTestEngine(t)
	r.POST("/api/admin/shop-items", NewCatalogHandler(flow).AdminCreateShopItem)

	w := doJSON(t, r, http.MethodPost, "/api/admin/shop-items", map[string]any{
		"name":      "Biochar",
		"price":     499,
		"features":  []string{"organic", "5kg"},
		"is_active": false,
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(8), decodeBody(t, w)["id"])
	flow.AssertExpectations(t)
}

func TestCatalogHandler_AdminDeleteShopItem_InUse(t *testing.T) {
	flow := new(mockCatalogFlow)
	flow.On("DeleteShopItem", mock.Anything, int64(8)).Return(apperror.ErrShopItemInUse)

	r := newTestEngine(t)
	r.DELETE("/api/admin/shop-items/:id", NewCatalogHandler(flow).AdminDeleteShopItem)

	w := doJSON(t, r, http.MethodDelete, "/api/admin/shop-items/8", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decodeBody(t, w)["code"])
}

func TestCatalogHandler_AdminReplacePacks(t *testing.T) {
	flow := new(mockCatalogFlow)
	flow.On("ReplacePacks", mock.Anything, int64(8), []service.PackInput{
		{PackSize: "1kg", OurPrice: 499, SortOrder: 1},
		{PackSize: "5kg", OurPrice: 1999, SortOrder: 2},
	}).Return([]models.PackPricing{
		{ID: 1, ShopItemID: 8, PackSize: "1kg", OurPrice: 499},
		{ID: 2, ShopItemID: 8, PackSize: "5kg", OurPrice: 1999},
	}, nil)

	r := newTestEngine(t)
	r.PUT("/api/admin/shop-items/:id/packs", NewCatalogHandler(flow).AdminReplacePacks)

	w := doJSON(t, r, http.MethodPut, "/api/admin/shop-items/8/packs", map[string]any{
		"packs": []map[string]any{
			{"pack_size": "1kg", "our_price": 499, "sort_order": 1},
			{"pack_size": "5kg", "our_price": 1999, "sort_order": 2},
		},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decodeBody(t, w)["packs"], 2)
	flow.AssertExpectations(t)
}

func TestCatalogHandler_AdminGetShopItem_NotFound(t *testing.T) {
	flow := new(mockCatalogFlow)
	flow.On("GetShopItem", mock.Anything, int64(404)).Return(nil, apperror.ErrShopItemNotFound)

	r := newTestEngine(t)
	r.GET("/api/admin/shop-items/:id", NewCatalogHandler(flow).AdminGetShopItem)

	w := doGet(r, "/api/admin/shop-items/404")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doGet(r, "/api/admin/shop-items/-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

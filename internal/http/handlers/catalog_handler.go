package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/ignatzorin/chemsus-backend/internal/dto"
	"github.com/ignatzorin/chemsus-backend/internal/http/handlers/common"
	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/service"
)

// CatalogFlow каталог магазина и страницы продуктов.
type CatalogFlow interface {
	PublicPageProducts(ctx context.Context) ([]models.PageProduct, error)
	PublicShopItems(ctx context.Context) ([]models.ShopItem, error)
	AdminPageProducts(ctx context.Context) ([]models.PageProduct, error)
	AdminShopItems(ctx context.Context) ([]models.ShopItem, error)
	CreatePageProduct(ctx context.Context, in service.PageProductInput) (*models.PageProduct, error)
	UpdatePageProduct(ctx context.Context, id int64, in service.PageProductInput) (*models.PageProduct, error)
	DeletePageProduct(ctx context.Context, id int64) error
	GetShopItem(ctx context.Context, id int64) (*models.ShopItem, error)
	CreateShopItem(ctx context.Context, in service.ShopItemInput) (*models.ShopItem, error)
	UpdateShopItem(ctx context.Context, id int64, in service.ShopItemInput) (*models.ShopItem, error)
	DeleteShopItem(ctx context.Context, id int64) error
	ReplacePacks(ctx context.Context, itemID int64, in []service.PackInput) ([]models.PackPricing, error)
}

type CatalogHandler struct {
	catalog CatalogFlow
}

func NewCatalogHandler(catalog CatalogFlow) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListPageProducts GET /api/products-page
func (h *CatalogHandler) ListPageProducts(c *gin.Context) {
	products, err := h.catalog.PublicPageProducts(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": lo.Ternary(products == nil, []models.PageProduct{}, products)})
}

// ListShopItems GET /api/shop-items
func (h *CatalogHandler) ListShopItems(c *gin.Context) {
	items, err := h.catalog.PublicShopItems(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": lo.Ternary(items == nil, []models.ShopItem{}, items)})
}

// AdminListPageProducts GET /api/admin/products-page
func (h *CatalogHandler) AdminListPageProducts(c *gin.Context) {
	products, err := h.catalog.AdminPageProducts(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": lo.Ternary(products == nil, []models.PageProduct{}, products)})
}

// AdminCreatePageProduct POST /api/admin/products-page
func (h *CatalogHandler) AdminCreatePageProduct(c *gin.Context) {
	var req dto.PageProductRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	product, err := h.catalog.CreatePageProduct(c.Request.Context(), pageProductInput(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// AdminUpdatePageProduct PUT /api/admin/products-page/:id
func (h *CatalogHandler) AdminUpdatePageProduct(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.PageProductRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	product, err := h.catalog.UpdatePageProduct(c.Request.Context(), id, pageProductInput(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// AdminDeletePageProduct DELETE /api/admin/products-page/:id
func (h *CatalogHandler) AdminDeletePageProduct(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.catalog.DeletePageProduct(c.Request.Context(), id); err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondSuccess(c, "продукт удалён", nil)
}

// AdminListShopItems GET /api/admin/shop-items
func (h *CatalogHandler) AdminListShopItems(c *gin.Context) {
	items, err := h.catalog.AdminShopItems(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": lo.Ternary(items == nil, []models.ShopItem{}, items)})
}

// AdminGetShopItem GET /api/admin/shop-items/:id
func (h *CatalogHandler) AdminGetShopItem(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	item, err := h.catalog.GetShopItem(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// AdminCreateShopItem POST /api/admin/shop-items
func (h *CatalogHandler) AdminCreateShopItem(c *gin.Context) {
	var req dto.ShopItemRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	item, err := h.catalog.CreateShopItem(c.Request.Context(), shopItemInput(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// AdminUpdateShopItem PUT /api/admin/shop-items/:id
func (h *CatalogHandler) AdminUpdateShopItem(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.ShopItemRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	item, err := h.catalog.UpdateShopItem(c.Request.Context(), id, shopItemInput(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// AdminDeleteShopItem DELETE /api/admin/shop-items/:id
func (h *CatalogHandler) AdminDeleteShopItem(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.catalog.DeleteShopItem(c.Request.Context(), id); err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondSuccess(c, "товар удалён", nil)
}

// AdminReplacePacks PUT /api/admin/shop-items/:id/packs
func (h *CatalogHandler) AdminReplacePacks(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.ReplacePacksRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	packs, err := h.catalog.ReplacePacks(c.Request.Context(), id, lo.Map(req.Packs, func(p dto.PackRequest, _ int) service.PackInput {
		return service.PackInput{
			PackSize:  p.PackSize,
			BiofmUSD:  p.BiofmUSD,
			BiofmINR:  p.BiofmINR,
			OurPrice:  p.OurPrice,
			IsActive:  p.IsActive,
			SortOrder: p.SortOrder,
		}
	}))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packs": packs})
}

func pageProductInput(req dto.PageProductRequest) service.PageProductInput {
	return service.PageProductInput{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Link:        req.Link,
		IsActive:    req.IsActive,
		SortOrder:   req.SortOrder,
	}
}

func shopItemInput(req dto.ShopItemRequest) service.ShopItemInput {
	return service.ShopItemInput{
		Name:        req.Name,
		Subtitle:    req.Subtitle,
		Features:    req.Features,
		Price:       req.Price,
		StockStatus: req.StockStatus,
		ShowBadge:   req.ShowBadge,
		Badge:       req.Badge,
		MoreLink:    req.MoreLink,
		Image:       req.Image,
		IsActive:    req.IsActive,
		SortOrder:   req.SortOrder,
	}
}

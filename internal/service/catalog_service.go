package service

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/repository"
	"github.com/ignatzorin/chemsus-backend/internal/validation"
)

const (
	maxCatalogNameLength = 200
	maxCatalogTextLength = 2000
	maxBadgeLength       = 60
	maxPackSizeLength    = 40
	maxPacksPerItem      = 30
	maxFeatures          = 20
)

var validStockStatuses = map[string]bool{
	models.StockInStock:    true,
	models.StockOutOfStock: true,
	models.StockPreOrder:   true,
}

// CatalogRepository хранилище каталога.
type CatalogRepository interface {
	PricingSource
	ListPageProducts(ctx context.Context, onlyActive bool) ([]models.PageProduct, error)
	CreatePageProduct(ctx context.Context, p *models.PageProduct) error
	UpdatePageProduct(ctx context.Context, p *models.PageProduct) error
	DeletePageProduct(ctx context.Context, id int64) error
	GetShopItem(ctx context.Context, id int64) (*models.ShopItem, error)
	CreateShopItem(ctx context.Context, item *models.ShopItem) error
	UpdateShopItem(ctx context.Context, item *models.ShopItem) error
	DeleteShopItem(ctx context.Context, id int64) error
	ReplacePacks(ctx context.Context, itemID int64, packs []models.PackPricing) ([]models.PackPricing, error)
}

// PageProductInput данные карточки страницы продуктов.
type PageProductInput struct {
	Name        string
	Description string
	Image       string
	Link        string
	IsActive    *bool
	SortOrder   int
}

// ShopItemInput данные товара магазина.
type ShopItemInput struct {
	Name        string
	Subtitle    string
	Features    []string
	Price       float64
	StockStatus string
	ShowBadge   bool
	Badge       string
	MoreLink    string
	Image       string
	IsActive    *bool
	SortOrder   int
}

// PackInput цена одной фасовки.
type PackInput struct {
	PackSize  string
	BiofmUSD  float64
	BiofmINR  float64
	OurPrice  float64
	IsActive  *bool
	SortOrder int
}

// CatalogService каталог: публичные списки с кешем и правки администратора.
type CatalogService struct {
	repo  CatalogRepository
	cache *CacheService
}

func NewCatalogService(repo CatalogRepository, cache *CacheService) *CatalogService {
	if cache == nil {
		cache = NewCacheService()
	}
	return &CatalogService{repo: repo, cache: cache}
}

// PublicPageProducts активные карточки страницы продуктов.
func (s *CatalogService) PublicPageProducts(ctx context.Context) ([]models.PageProduct, error) {
	products, err := cachedLoad(ctx, s.cache, CacheKeyPageProducts, func(ctx context.Context) ([]models.PageProduct, error) {
		return s.repo.ListPageProducts(ctx, true)
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return products, nil
}

// PublicShopItems активные товары с активными фасовками.
func (s *CatalogService) PublicShopItems(ctx context.Context) ([]models.ShopItem, error) {
	items, err := cachedLoad(ctx, s.cache, CacheKeyShopItems, func(ctx context.Context) ([]models.ShopItem, error) {
		return s.shopItemsWithPacks(ctx, true)
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

// AdminPageProducts все карточки, включая скрытые.
func (s *CatalogService) AdminPageProducts(ctx context.Context) ([]models.PageProduct, error) {
	products, err := s.repo.ListPageProducts(ctx, false)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return products, nil
}

// AdminShopItems все товары со всеми фасовками.
func (s *CatalogService) AdminShopItems(ctx context.Context) ([]models.ShopItem, error) {
	items, err := s.shopItemsWithPacks(ctx, false)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

func (s *CatalogService) CreatePageProduct(ctx context.Context, in PageProductInput) (*models.PageProduct, error) {
	p, err := pageProductFromInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreatePageProduct(ctx, p); err != nil {
		return nil, apperror.Internal(err)
	}
	s.cache.InvalidateCatalog()
	return p, nil
}

func (s *CatalogService) UpdatePageProduct(ctx context.Context, id int64, in PageProductInput) (*models.PageProduct, error) {
	p, err := pageProductFromInput(in)
	if err != nil {
		return nil, err
	}
	p.ID = id
	err = s.repo.UpdatePageProduct(ctx, p)
	if errors.Is(err, repository.ErrPageProductNotFound) {
		return nil, apperror.ErrProductNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	s.cache.InvalidateCatalog()
	return p, nil
}

func (s *CatalogService) DeletePageProduct(ctx context.Context, id int64) error {
	err := s.repo.DeletePageProduct(ctx, id)
	if errors.Is(err, repository.ErrPageProductNotFound) {
		return apperror.ErrProductNotFound
	}
	if err != nil {
		return apperror.Internal(err)
	}
	s.cache.InvalidateCatalog()
	return nil
}

// GetShopItem товар со всеми фасовками.
func (s *CatalogService) GetShopItem(ctx context.Context, id int64) (*models.ShopItem, error) {
	item, err := s.repo.GetShopItem(ctx, id)
	if errors.Is(err, repository.ErrShopItemNotFound) {
		return nil, apperror.ErrShopItemNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	packs, err := s.repo.ListPacks(ctx, []int64{id}, false)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	item.Packs = packs
	return item, nil
}

func (s *CatalogService) CreateShopItem(ctx context.Context, in ShopItemInput) (*models.ShopItem, error) {
	item, err := shopItemFromInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateShopItem(ctx, item); err != nil {
		return nil, apperror.Internal(err)
	}
	s.cache.InvalidateCatalog()
	return item, nil
}

func (s *CatalogService) UpdateShopItem(ctx context.Context, id int64, in ShopItemInput) (*models.ShopItem, error) {
	item, err := shopItemFromInput(in)
	if err != nil {
		return nil, err
	}
	item.ID = id
	err = s.repo.UpdateShopItem(ctx, item)
	if errors.Is(err, repository.ErrShopItemNotFound) {
		return nil, apperror.ErrShopItemNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	s.cache.InvalidateCatalog()
	return item, nil
}

func (s *CatalogService) DeleteShopItem(ctx context.Context, id int64) error {
	err := s.repo.DeleteShopItem(ctx, id)
	switch {
	case errors.Is(err, repository.ErrShopItemNotFound):
		return apperror.ErrShopItemNotFound
	case errors.Is(err, repository.ErrShopItemInUse):
		return apperror.ErrShopItemInUse
	case err != nil:
		return apperror.Internal(err)
	}
	s.cache.InvalidateCatalog()
	return nil
}

// ReplacePacks заменяет все фасовки товара. Размеры фасовок не должны повторяться.
func (s *CatalogService) ReplacePacks(ctx context.Context, itemID int64, in []PackInput) ([]models.PackPricing, error) {
	if len(in) > maxPacksPerItem {
		return nil, apperror.New(apperror.ErrCodeValidation, "слишком много фасовок")
	}

	packs := make([]models.PackPricing, 0, len(in))
	for _, p := range in {
		size := strings.TrimSpace(p.PackSize)
		if err := validation.ValidateLength("фасовка", size, 1, maxPackSizeLength); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
		if p.BiofmUSD < 0 || p.BiofmINR < 0 || p.OurPrice < 0 {
			return nil, apperror.New(apperror.ErrCodeValidation, "цена не может быть отрицательной")
		}
		packs = append(packs, models.PackPricing{
			ShopItemID: itemID,
			PackSize:   size,
			BiofmUSD:   p.BiofmUSD,
			BiofmINR:   p.BiofmINR,
			OurPrice:   p.OurPrice,
			IsActive:   lo.FromPtrOr(p.IsActive, true),
			SortOrder:  p.SortOrder,
		})
	}

	dups := lo.FindDuplicatesBy(packs, func(p models.PackPricing) string { return strings.ToLower(p.PackSize) })
	if len(dups) > 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "фасовка "+dups[0].PackSize+" указана дважды")
	}

	out, err := s.repo.ReplacePacks(ctx, itemID, packs)
	if errors.Is(err, repository.ErrShopItemNotFound) {
		return nil, apperror.ErrShopItemNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	s.cache.InvalidateCatalog()
	return out, nil
}

func (s *CatalogService) shopItemsWithPacks(ctx context.Context, onlyActive bool) ([]models.ShopItem, error) {
	items, err := s.repo.ListShopItems(ctx, onlyActive)
	if err != nil {
		return nil, err
	}
	ids := lo.Map(items, func(it models.ShopItem, _ int) int64 { return it.ID })
	packs, err := s.repo.ListPacks(ctx, ids, onlyActive)
	if err != nil {
		return nil, err
	}
	byItem := lo.GroupBy(packs, func(p models.PackPricing) int64 { return p.ShopItemID })
	for i := range items {
		items[i].Packs = byItem[items[i].ID]
		if items[i].Packs == nil {
			items[i].Packs = []models.PackPricing{}
		}
	}
	return items, nil
}

func pageProductFromInput(in PageProductInput) (*models.PageProduct, error) {
	name := strings.TrimSpace(in.Name)
	checks := []error{
		validation.ValidateLength("название", name, 1, maxCatalogNameLength),
		validation.ValidateOptional("описание", in.Description, maxCatalogTextLength),
		validation.ValidateExternalLink(in.Image),
		validation.ValidateExternalLink(in.Link),
	}
	for _, err := range checks {
		if err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}
	return &models.PageProduct{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Image:       strings.TrimSpace(in.Image),
		Link:        strings.TrimSpace(in.Link),
		IsActive:    lo.FromPtrOr(in.IsActive, true),
		SortOrder:   in.SortOrder,
	}, nil
}

func shopItemFromInput(in ShopItemInput) (*models.ShopItem, error) {
	name := strings.TrimSpace(in.Name)
	stock := strings.TrimSpace(in.StockStatus)
	if stock == "" {
		stock = models.StockInStock
	}
	features := lo.Compact(lo.Map(in.Features, func(f string, _ int) string { return strings.TrimSpace(f) }))

	checks := []error{
		validation.ValidateLength("название", name, 1, maxCatalogNameLength),
		validation.ValidateOptional("подзаголовок", in.Subtitle, maxCatalogNameLength),
		validation.ValidateOptional("бейдж", in.Badge, maxBadgeLength),
		validation.ValidateExternalLink(in.MoreLink),
		validation.ValidateExternalLink(in.Image),
	}
	for _, err := range checks {
		if err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}
	if in.Price < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена не может быть отрицательной")
	}
	if !validStockStatuses[stock] {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус наличия")
	}
	if len(features) > maxFeatures {
		return nil, apperror.New(apperror.ErrCodeValidation, "слишком много характеристик")
	}

	return &models.ShopItem{
		Name:        name,
		Subtitle:    strings.TrimSpace(in.Subtitle),
		Features:    features,
		Price:       in.Price,
		StockStatus: stock,
		ShowBadge:   in.ShowBadge,
		Badge:       strings.TrimSpace(in.Badge),
		MoreLink:    strings.TrimSpace(in.MoreLink),
		Image:       strings.TrimSpace(in.Image),
		IsActive:    lo.FromPtrOr(in.IsActive, true),
		SortOrder:   in.SortOrder,
	}, nil
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"deluxe_backend/internal/model"
)

// CatalogRepository reads and seeds plans and products.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListPlans(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	err := r.db.WithContext(ctx).Order("price ASC, id ASC").Find(&plans).Error
	return plans, err
}

func (r *CatalogRepository) FindPlanBySlug(ctx context.Context, slug string) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).Order("id ASC").First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *CatalogRepository) FindPlanByStripePriceID(ctx context.Context, priceID string) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.WithContext(ctx).Where("stripe_price_id = ?", priceID).Order("id ASC").First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *CatalogRepository) CreatePlans(ctx context.Context, plans []model.Plan) error {
	return r.db.WithContext(ctx).Create(&plans).Error
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Order("id ASC").Find(&products).Error
	return products, err
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

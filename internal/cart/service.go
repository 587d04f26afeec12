package cart

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ratingLoader interface {
	AverageForProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]float64, error)
}

// Service exposes cart operations for a single authenticated user.
type Service interface {
	AddItem(ctx context.Context, userID string, input AddItemInput) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID string, cartItemID uuid.UUID, qty int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID string, cartItemID uuid.UUID) error
	GetCart(ctx context.Context, userID string) (*CartDTO, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	ratings ratingLoader
}

// AddItemInput captures the payload for adding a product to the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	Qty       int
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, ratings ratingLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ratings == nil {
		return nil, fmt.Errorf("rating loader required")
	}
	return &service{repo: repo, tx: tx, ratings: ratings}, nil
}

// AddItem merges the requested quantity into any existing line for the same
// product. The combined quantity is validated against live stock; on
// rejection the existing line is left untouched.
func (s *service) AddItem(ctx context.Context, userID string, input AddItemInput) (*models.CartItem, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var line *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.FindProduct(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		existing, err := repo.FindByUserAndProduct(ctx, userID, input.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		combined := input.Qty
		if existing != nil {
			combined += existing.Quantity
		}
		if combined > product.Stock {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
				WithDetails(map[string]any{
					"productId": product.ID,
					"requested": combined,
					"available": product.Stock,
				})
		}

		if existing != nil {
			if err := repo.UpdateQuantity(ctx, existing.ID, combined); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
			existing.Quantity = combined
			line = existing
			return nil
		}

		item := &models.CartItem{
			ID:        uuid.New(),
			UserID:    userID,
			ProductID: input.ProductID,
			Quantity:  input.Qty,
		}
		if err := repo.Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		line = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateQuantity replaces a line's quantity after ownership and stock checks.
func (s *service) UpdateQuantity(ctx context.Context, userID string, cartItemID uuid.UUID, qty int) (*models.CartItem, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if cartItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var line *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.loadOwnedLine(ctx, repo, userID, cartItemID)
		if err != nil {
			return err
		}

		product, err := repo.FindProduct(ctx, item.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if qty > product.Stock {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
				WithDetails(map[string]any{
					"productId": product.ID,
					"requested": qty,
					"available": product.Stock,
				})
		}

		if err := repo.UpdateQuantity(ctx, item.ID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		item.Quantity = qty
		line = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveItem deletes a line owned by the user.
func (s *service) RemoveItem(ctx context.Context, userID string, cartItemID uuid.UUID) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if cartItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.loadOwnedLine(ctx, repo, userID, cartItemID)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		return nil
	})
}

// GetCart returns the user's lines enriched with product snapshots and mean
// review ratings, plus subtotal and item-count rollups. Reading the cart has
// no reservation side effects.
func (s *service) GetCart(ctx context.Context, userID string) (*CartDTO, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	items, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	averages, err := s.ratings.AverageForProducts(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ratings")
	}

	dto := &CartDTO{Items: make([]LineDTO, 0, len(items)), Subtotal: decimal.Zero}
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		lineTotal := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		dto.Items = append(dto.Items, LineDTO{
			ID:            item.ID,
			ProductID:     item.ProductID,
			Name:          item.Product.Name,
			Brand:         item.Product.Brand,
			Size:          item.Product.Size,
			UnitPrice:     item.Product.Price,
			Quantity:      item.Quantity,
			LineTotal:     lineTotal,
			Stock:         item.Product.Stock,
			AverageRating: roundRating(averages[item.ProductID]),
		})
		dto.Subtotal = dto.Subtotal.Add(lineTotal)
		dto.ItemCount += item.Quantity
	}
	return dto, nil
}

func (s *service) loadOwnedLine(ctx context.Context, repo Repository, userID string, cartItemID uuid.UUID) (*models.CartItem, error) {
	item, err := repo.FindByID(ctx, cartItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	if item.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart item does not belong to user")
	}
	return item, nil
}

func roundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

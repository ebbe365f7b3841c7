package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tellerpos/backend/internal/domain"
	"tellerpos/backend/internal/validation"
)

// maxPrice is the first price that no longer fits the ledger's NUMERIC(12,2).
var maxPrice = decimal.New(1, 10)

// ListProducts is open to every role. Tellers only ever see available
// products; other roles may filter by status.
func (s *Service) ListProducts(ctx context.Context, status domain.ProductStatus) ([]domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	role, ok := s.ResolveRole(ctx, actor)
	if !ok {
		return nil, ErrForbidden
	}

	if status != "" && !status.Valid() {
		return nil, validation.Fields(map[string]string{"status": "must be one of: available, unavailable"})
	}
	if role == domain.RoleTeller {
		status = domain.ProductStatusAvailable
	}
	return s.repo.ListProducts(ctx, status)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if _, err := s.authorize(ctx, domain.RoleManager); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := s.authorize(ctx, domain.RoleManager)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := validation.Struct(req); err != nil {
		return domain.Product{}, err
	}
	if msg := checkPrice(*req.Price); msg != "" {
		return domain.Product{}, validation.Fields(map[string]string{"price": msg})
	}
	if req.Status == "" {
		req.Status = domain.ProductStatusAvailable
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Status:      req.Status,
		CreatedBy:   actor.UserID,
	})
	if err != nil {
		return domain.Product{}, err
	}

	log.Info().Str("actor", actor.Username).Str("product_id", created.ID).Str("price", created.Price.StringFixed(2)).Msg("product created")
	return *created, nil
}

// UpdateProduct applies the supplied fields. Creator and creation time never
// change.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := s.authorize(ctx, domain.RoleManager)
	if err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validation.Struct(req); err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		if *req.Name == "" {
			return domain.Product{}, validation.Fields(map[string]string{"name": "is required"})
		}
		updated.Name = *req.Name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if msg := checkPrice(*req.Price); msg != "" {
			return domain.Product{}, validation.Fields(map[string]string{"price": msg})
		}
		updated.Price = *req.Price
	}
	if req.Status != nil {
		updated.Status = *req.Status
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	log.Info().Str("actor", actor.Username).Str("product_id", saved.ID).Str("status", string(saved.Status)).Msg("product updated")
	return *saved, nil
}

func checkPrice(price decimal.Decimal) string {
	switch {
	case price.IsNegative():
		return "must be at least 0"
	case price.Exponent() < -2 && !price.Equal(price.Round(2)):
		return "must have at most 2 decimal places"
	case price.GreaterThanOrEqual(maxPrice):
		return "is too large"
	default:
		return ""
	}
}

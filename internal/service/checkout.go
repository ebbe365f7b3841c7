package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tellerpos/backend/internal/cache"
	"tellerpos/backend/internal/domain"
	"tellerpos/backend/internal/validation"
)

// Checkout turns a teller's cart into one transaction priced at current
// catalog prices. Either the header and every item are recorded or nothing is.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	actor, err := s.authorize(ctx, domain.RoleTeller)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if err := validation.Struct(req); err != nil {
		return domain.CheckoutResponse{}, err
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}

	cart := normalizeCart(req.Cart)
	if len(cart) == 0 {
		return domain.CheckoutResponse{}, ErrEmptyCart
	}

	ids := make([]string, 0, len(cart))
	for id := range cart {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	items := make([]domain.TransactionItem, 0, len(ids))
	total := decimal.Zero
	itemCount := 0
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		if product.Status != domain.ProductStatusAvailable {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: %s", ErrProductUnavailable, id)
		}
		item := domain.TransactionItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    cart[id],
			Price:       product.Price,
		}
		total = total.Add(item.LineTotal())
		itemCount += item.Quantity
		items = append(items, item)
	}

	saved, err := s.repo.CreateTransaction(ctx, domain.Transaction{
		TellerID:        actor.UserID,
		CustomerName:    req.CustomerName,
		TotalAmount:     total,
		PaymentMethod:   req.PaymentMethod,
		TransactionDate: s.now().UTC(),
		Items:           items,
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	s.invalidateReport(ctx, saved.TransactionDate)
	log.Info().
		Str("transaction_id", saved.ID).
		Str("teller", actor.Username).
		Str("total", saved.TotalAmount.StringFixed(2)).
		Int("items", itemCount).
		Msg("checkout completed")

	return domain.CheckoutResponse{
		TransactionID:   saved.ID,
		TotalAmount:     saved.TotalAmount,
		ItemCount:       itemCount,
		PaymentMethod:   saved.PaymentMethod,
		Items:           saved.Items,
		TransactionDate: saved.TransactionDate,
	}, nil
}

// normalizeCart drops non-positive quantities and merges ids that only
// differ by surrounding whitespace.
func normalizeCart(cart domain.Cart) map[string]int {
	normalized := make(map[string]int, len(cart))
	for id, qty := range cart {
		id = strings.TrimSpace(id)
		if id == "" || qty < 1 {
			continue
		}
		normalized[id] += qty
	}
	return normalized
}

func (s *Service) invalidateReport(ctx context.Context, at time.Time) {
	key := cache.ReportKey(at.In(s.loc))
	if err := s.reports.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to invalidate sales report cache")
	}
}

package store

import (
	"context"
	"errors"

	"tellerpos/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

type Repository interface {
	// CreateUser persists the user and, when non-nil, its profile as one unit.
	CreateUser(ctx context.Context, user domain.User, profile *domain.Profile) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	// UpdateUser rewrites the user row and upserts the profile as one unit.
	UpdateUser(ctx context.Context, user domain.User, profile domain.Profile) (*domain.UserAccount, error)
	// CountUsers returns all users and those whose profile is active.
	CountUsers(ctx context.Context) (total int64, active int64, err error)

	// ListProducts returns products ordered by name; an empty status lists all.
	ListProducts(ctx context.Context, status domain.ProductStatus) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	// CreateTransaction writes the header and every item, or nothing.
	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	// ListTransactions returns matching transactions with items, newest first.
	ListTransactions(ctx context.Context, query domain.SalesQuery) ([]domain.Transaction, error)
	// SalesByTeller aggregates matching transactions per teller, ordered by
	// username. Tellers without transactions in range are omitted.
	SalesByTeller(ctx context.Context, query domain.SalesQuery) ([]domain.TellerSales, error)
}

// CheckTransaction enforces the ledger invariants shared by every repository.
func CheckTransaction(tx domain.Transaction) error {
	if tx.TellerID == "" || len(tx.Items) == 0 {
		return ErrInvalidTransaction
	}
	for _, item := range tx.Items {
		if item.ProductID == "" || item.Quantity < 1 || item.Price.IsNegative() {
			return ErrInvalidTransaction
		}
	}
	if !tx.TotalAmount.Equal(tx.ItemsTotal()) {
		return ErrInvalidTransaction
	}
	return nil
}

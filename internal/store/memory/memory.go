package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tellerpos/backend/internal/domain"
	"tellerpos/backend/internal/store"
	"tellerpos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	users           map[string]domain.User
	userIDByName    map[string]string
	profiles        map[string]domain.Profile
	products        map[string]domain.Product
	transactions    []*domain.Transaction
	transactionByID map[string]*domain.Transaction
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:           make(map[string]domain.User),
		userIDByName:    make(map[string]string),
		profiles:        make(map[string]domain.Profile),
		products:        make(map[string]domain.Product),
		transactionByID: make(map[string]*domain.Transaction),
	}
}

// NewSeeded returns a store holding one account per role and a small
// catalog for dev/demo mode. Seed passwords come from SEED_ADMIN_PASSWORD,
// SEED_MANAGER_PASSWORD and SEED_TELLER_PASSWORD, with dev defaults when unset.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, seed := range []struct {
		id       string
		username string
		envKey   string
		fallback string
		role     domain.Role
	}{
		{"usr-admin", "admin", "SEED_ADMIN_PASSWORD", "admin12345", domain.RoleAdmin},
		{"usr-manager", "manager", "SEED_MANAGER_PASSWORD", "manager12345", domain.RoleManager},
		{"usr-teller", "teller", "SEED_TELLER_PASSWORD", "teller12345", domain.RoleTeller},
	} {
		password := os.Getenv(seed.envKey)
		if password == "" {
			password = seed.fallback
			log.Warn().Str("user", seed.username).Msgf("memory store: using default dev password, set %s to override", seed.envKey)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("user", seed.username).Msg("memory store: hash seed password")
		}
		s.users[seed.id] = domain.User{ID: seed.id, Username: seed.username, Password: string(hash), CreatedAt: now}
		s.userIDByName[seed.username] = seed.id
		s.profiles[seed.id] = domain.Profile{UserID: seed.id, Role: seed.role, IsActive: true, CreatedAt: now}
	}

	for _, p := range []struct {
		id     string
		name   string
		price  string
		status domain.ProductStatus
	}{
		{"prd-espresso", "Espresso", "2.50", domain.ProductStatusAvailable},
		{"prd-latte", "Caffe Latte", "3.75", domain.ProductStatusAvailable},
		{"prd-croissant", "Butter Croissant", "2.20", domain.ProductStatusAvailable},
		{"prd-bagel", "Sesame Bagel", "1.80", domain.ProductStatusAvailable},
		{"prd-water", "Still Water 500ml", "1.00", domain.ProductStatusAvailable},
		{"prd-cheesecake", "Cheesecake Slice", "4.10", domain.ProductStatusUnavailable},
	} {
		s.products[p.id] = domain.Product{
			ID:        p.id,
			Name:      p.name,
			Price:     decimal.RequireFromString(p.price),
			Status:    p.status,
			CreatedBy: "usr-manager",
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return s
}

func (s *Store) CreateUser(_ context.Context, user domain.User, profile *domain.Profile) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usernameKey(user.Username)
	if key == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if profile != nil && !profile.Role.Valid() {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.userIDByName[key]; exists {
		return nil, store.ErrConflict
	}

	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user
	s.userIDByName[key] = user.ID
	if profile != nil {
		p := *profile
		p.UserID = user.ID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = user.CreatedAt
		}
		s.profiles[user.ID] = p
	}
	return s.accountLocked(user.ID), nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[id]; !ok {
		return nil, store.ErrNotFound
	}
	return s.accountLocked(id), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByName[usernameKey(username)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.accountLocked(id), nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]domain.UserAccount, 0, len(s.users))
	for id := range s.users {
		accounts = append(accounts, *s.accountLocked(id))
	}
	slices.SortFunc(accounts, func(a, b domain.UserAccount) int {
		return strings.Compare(a.User.Username, b.User.Username)
	})
	return accounts, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User, profile domain.Profile) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	key := usernameKey(user.Username)
	if key == "" || !profile.Role.Valid() {
		return nil, store.ErrInvalidTransaction
	}
	if ownerID, taken := s.userIDByName[key]; taken && ownerID != user.ID {
		return nil, store.ErrConflict
	}

	// Both halves are checked above; from here on nothing can fail.
	user.CreatedAt = current.CreatedAt
	if user.Password == "" {
		user.Password = current.Password
	}
	delete(s.userIDByName, usernameKey(current.Username))
	s.userIDByName[key] = user.ID
	s.users[user.ID] = user

	profile.UserID = user.ID
	if existing, ok := s.profiles[user.ID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	s.profiles[user.ID] = profile
	return s.accountLocked(user.ID), nil
}

func (s *Store) CountUsers(_ context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active int64
	for id := range s.users {
		if p, ok := s.profiles[id]; ok && p.IsActive {
			active++
		}
	}
	return int64(len(s.users)), active, nil
}

func (s *Store) ListProducts(_ context.Context, status domain.ProductStatus) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if status != "" && p.Status != status {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkProduct(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkProduct(product); err != nil {
		return nil, err
	}
	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedBy = current.CreatedBy
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.CheckTransaction(tx); err != nil {
		return nil, err
	}
	teller, ok := s.users[tx.TellerID]
	if !ok {
		return nil, store.ErrInvalidTransaction
	}
	for _, item := range tx.Items {
		if _, ok := s.products[item.ProductID]; !ok {
			return nil, store.ErrInvalidTransaction
		}
	}

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if _, exists := s.transactionByID[tx.ID]; exists {
		return nil, store.ErrConflict
	}
	if tx.TransactionDate.IsZero() {
		tx.TransactionDate = time.Now().UTC()
	}
	tx.TellerUsername = teller.Username
	items := make([]domain.TransactionItem, len(tx.Items))
	for i, item := range tx.Items {
		if item.ID == "" {
			item.ID = xid.New("txi")
		}
		item.TransactionID = tx.ID
		items[i] = item
	}
	tx.Items = items

	saved := cloneTransaction(&tx)
	s.transactions = append(s.transactions, saved)
	s.transactionByID[saved.ID] = saved
	return cloneTransaction(saved), nil
}

func (s *Store) ListTransactions(_ context.Context, query domain.SalesQuery) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0)
	for _, tx := range s.transactions {
		if !matches(tx, query) {
			continue
		}
		dup := cloneTransaction(tx)
		dup.TellerUsername = s.tellerNameLocked(tx)
		result = append(result, *dup)
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if c := b.TransactionDate.Compare(a.TransactionDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) SalesByTeller(_ context.Context, query domain.SalesQuery) ([]domain.TellerSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTeller := make(map[string]*domain.TellerSales)
	for _, tx := range s.transactions {
		if !matches(tx, query) {
			continue
		}
		row, ok := byTeller[tx.TellerID]
		if !ok {
			row = &domain.TellerSales{TellerID: tx.TellerID, TellerUsername: s.tellerNameLocked(tx), TotalSales: decimal.Zero}
			byTeller[tx.TellerID] = row
		}
		row.TotalSales = row.TotalSales.Add(tx.TotalAmount)
		row.TransactionCount++
	}

	rows := make([]domain.TellerSales, 0, len(byTeller))
	for _, row := range byTeller {
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b domain.TellerSales) int {
		if a.TellerUsername == b.TellerUsername {
			return strings.Compare(a.TellerID, b.TellerID)
		}
		return strings.Compare(a.TellerUsername, b.TellerUsername)
	})
	return rows, nil
}

func (s *Store) accountLocked(id string) *domain.UserAccount {
	account := &domain.UserAccount{User: s.users[id]}
	if p, ok := s.profiles[id]; ok {
		account.Profile = &p
	}
	return account
}

func (s *Store) tellerNameLocked(tx *domain.Transaction) string {
	if u, ok := s.users[tx.TellerID]; ok {
		return u.Username
	}
	return tx.TellerUsername
}

func matches(tx *domain.Transaction, query domain.SalesQuery) bool {
	if query.TellerID != "" && tx.TellerID != query.TellerID {
		return false
	}
	if query.From != nil && tx.TransactionDate.Before(*query.From) {
		return false
	}
	if query.To != nil && !tx.TransactionDate.Before(*query.To) {
		return false
	}
	return true
}

func checkProduct(product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" || product.Price.IsNegative() || !product.Status.Valid() {
		return store.ErrInvalidTransaction
	}
	return nil
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dupItems := make([]domain.TransactionItem, len(src.Items))
	copy(dupItems, src.Items)
	dup.Items = dupItems
	return &dup
}

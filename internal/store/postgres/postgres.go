package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"tellerpos/backend/internal/domain"
	"tellerpos/backend/internal/store"
	"tellerpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const accountColumns = `
	u.id, u.username, u.email, u.password_hash, u.created_at,
	p.role, p.is_active, p.created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.UserAccount, error) {
	var (
		account          domain.UserAccount
		role             sql.NullString
		active           sql.NullBool
		profileCreatedAt sql.NullTime
	)
	if err := row.Scan(
		&account.User.ID, &account.User.Username, &account.User.Email, &account.User.Password, &account.User.CreatedAt,
		&role, &active, &profileCreatedAt,
	); err != nil {
		return nil, err
	}
	if role.Valid {
		account.Profile = &domain.Profile{
			UserID:    account.User.ID,
			Role:      domain.Role(role.String),
			IsActive:  active.Bool,
			CreatedAt: profileCreatedAt.Time,
		}
	}
	return &account, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User, profile *domain.Profile) (*domain.UserAccount, error) {
	if strings.TrimSpace(user.Username) == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if profile != nil && !profile.Role.Valid() {
		return nil, store.ErrInvalidTransaction
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin create user")
	}
	defer func() { _ = pgTx.Rollback() }()

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Username, user.Email, user.Password, user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, errors.Wrap(err, "insert user")
	}

	account := &domain.UserAccount{User: user}
	if profile != nil {
		p := *profile
		p.UserID = user.ID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = user.CreatedAt
		}
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO profiles (user_id, role, is_active, created_at)
			VALUES ($1, $2, $3, $4)
		`, p.UserID, string(p.Role), p.IsActive, p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "insert profile")
		}
		account.Profile = &p
	}

	if err := pgTx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit create user")
	}
	return account, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE u.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "get user")
	}
	return account, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE lower(u.username) = lower($1)
	`, strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "get user by username")
	}
	return account, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		ORDER BY u.username, u.id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	accounts := make([]domain.UserAccount, 0, 32)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return accounts, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User, profile domain.Profile) (*domain.UserAccount, error) {
	if strings.TrimSpace(user.Username) == "" || !profile.Role.Valid() {
		return nil, store.ErrInvalidTransaction
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin update user")
	}
	defer func() { _ = pgTx.Rollback() }()

	updated := user
	err = pgTx.QueryRowContext(ctx, `
		UPDATE users
		SET username = $2, email = $3, password_hash = COALESCE(NULLIF($4, ''), password_hash)
		WHERE id = $1
		RETURNING password_hash, created_at
	`, user.ID, user.Username, user.Email, user.Password).Scan(&updated.Password, &updated.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, errors.Wrap(err, "update user")
	}

	profile.UserID = user.ID
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO profiles (user_id, role, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, is_active = EXCLUDED.is_active
		RETURNING created_at
	`, profile.UserID, string(profile.Role), profile.IsActive, profile.CreatedAt).Scan(&profile.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "upsert profile")
	}

	if err := pgTx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit update user")
	}
	return &domain.UserAccount{User: updated, Profile: &profile}, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, int64, error) {
	var total, active int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(u.id), COUNT(p.user_id) FILTER (WHERE p.is_active)
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
	`).Scan(&total, &active)
	if err != nil {
		return 0, 0, errors.Wrap(err, "count users")
	}
	return total, active, nil
}

const productColumns = `id, name, description, price, status, created_by, created_at, updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = domain.ProductStatus(status)
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, status domain.ProductStatus) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE $1 = '' OR status = $1
		ORDER BY name, id
	`, string(status))
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		result[p.ID] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := checkProduct(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, product.ID, product.Name, product.Description, product.Price, string(product.Status), product.CreatedBy, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, errors.Wrap(err, "insert product")
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := checkProduct(product); err != nil {
		return nil, err
	}

	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, status = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Description, product.Price, string(product.Status)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "update product")
	}
	return updated, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if err := store.CheckTransaction(tx); err != nil {
		return nil, err
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.TransactionDate.IsZero() {
		tx.TransactionDate = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin checkout")
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := pgTx.QueryRowContext(ctx, `SELECT username FROM users WHERE id = $1`, tx.TellerID).Scan(&tx.TellerUsername); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, errors.Wrap(err, "load teller")
	}

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO transactions (id, teller_id, customer_name, total_amount, payment_method, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tx.ID, tx.TellerID, tx.CustomerName, tx.TotalAmount, tx.PaymentMethod, tx.TransactionDate); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, errors.Wrap(err, "insert transaction")
	}

	items := make([]domain.TransactionItem, len(tx.Items))
	for i, item := range tx.Items {
		if item.ID == "" {
			item.ID = xid.New("txi")
		}
		item.TransactionID = tx.ID
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (id, transaction_id, product_id, product_name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, item.TransactionID, item.ProductID, item.ProductName, item.Quantity, item.Price); err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrInvalidTransaction
			}
			return nil, errors.Wrapf(err, "insert transaction item %s", item.ProductID)
		}
		items[i] = item
	}
	tx.Items = items

	if err := pgTx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit checkout")
	}
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, query domain.SalesQuery) ([]domain.Transaction, error) {
	where, args := salesFilter(query)
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.teller_id, u.username, t.customer_name, t.total_amount, t.payment_method, t.transaction_date
		FROM transactions t
		JOIN users u ON u.id = t.teller_id
		`+where+`
		ORDER BY t.transaction_date DESC, t.id
	`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}

	txs := make([]domain.Transaction, 0, 32)
	index := make(map[string]int)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.TellerID, &tx.TellerUsername, &tx.CustomerName, &tx.TotalAmount, &tx.PaymentMethod, &tx.TransactionDate); err != nil {
			_ = rows.Close()
			return nil, errors.Wrap(err, "scan transaction")
		}
		tx.Items = []domain.TransactionItem{}
		index[tx.ID] = len(txs)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, errors.Wrap(err, "list transactions")
	}
	_ = rows.Close()

	if len(txs) == 0 {
		return txs, nil
	}
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, product_id, product_name, quantity, price
		FROM transaction_items
		WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, product_id, id
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list transaction items")
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.TransactionItem
		if err := itemRows.Scan(&item.ID, &item.TransactionID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, errors.Wrap(err, "scan transaction item")
		}
		pos := index[item.TransactionID]
		txs[pos].Items = append(txs[pos].Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, errors.Wrap(err, "list transaction items")
	}
	return txs, nil
}

func (s *Store) SalesByTeller(ctx context.Context, query domain.SalesQuery) ([]domain.TellerSales, error) {
	where, args := salesFilter(query)
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.teller_id, u.username, COALESCE(SUM(t.total_amount), 0), COUNT(t.id)
		FROM transactions t
		JOIN users u ON u.id = t.teller_id
		`+where+`
		GROUP BY t.teller_id, u.username
		ORDER BY u.username, t.teller_id
	`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sales by teller")
	}
	defer rows.Close()

	result := make([]domain.TellerSales, 0, 16)
	for rows.Next() {
		var row domain.TellerSales
		if err := rows.Scan(&row.TellerID, &row.TellerUsername, &row.TotalSales, &row.TransactionCount); err != nil {
			return nil, errors.Wrap(err, "scan sales row")
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sales by teller")
	}
	return result, nil
}

// salesFilter renders the WHERE clause for a SalesQuery over alias t.
func salesFilter(query domain.SalesQuery) (string, []any) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if query.From != nil {
		args = append(args, *query.From)
		clauses = append(clauses, fmt.Sprintf("t.transaction_date >= $%d", len(args)))
	}
	if query.To != nil {
		args = append(args, *query.To)
		clauses = append(clauses, fmt.Sprintf("t.transaction_date < $%d", len(args)))
	}
	if query.TellerID != "" {
		args = append(args, query.TellerID)
		clauses = append(clauses, fmt.Sprintf("t.teller_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func checkProduct(product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" || product.Price.IsNegative() || !product.Status.Valid() {
		return store.ErrInvalidTransaction
	}
	if product.Price.GreaterThanOrEqual(maxPrice) {
		return store.ErrInvalidTransaction
	}
	return nil
}

// maxPrice is the first value that no longer fits NUMERIC(12,2).
var maxPrice = decimal.New(1, 10)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

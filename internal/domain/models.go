package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Profile struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount pairs a user with its profile. Profile is nil for users that
// were created without one; such users hold no role.
type UserAccount struct {
	User    User     `json:"user"`
	Profile *Profile `json:"profile"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150,username"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     Role   `json:"role" validate:"required,oneof=admin manager teller"`
}

type UpdateUserRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=150,username"`
	Email    *string `json:"email,omitempty" validate:"omitempty,max=254"`
	Role     *Role   `json:"role,omitempty" validate:"omitempty,oneof=admin manager teller"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        Role   `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated identity handed to the core by the auth layer.
// It carries no role: roles are resolved from the profile on every request.
type Actor struct {
	UserID   string
	Username string
}

type ProductStatus string

const (
	ProductStatusAvailable   ProductStatus = "available"
	ProductStatusUnavailable ProductStatus = "unavailable"
)

func (s ProductStatus) Valid() bool {
	return s == ProductStatusAvailable || s == ProductStatusUnavailable
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Status      ProductStatus   `json:"status"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=2000"`
	Price       *decimal.Decimal `json:"price" validate:"required,min=0"`
	Status      ProductStatus    `json:"status" validate:"omitempty,oneof=available unavailable"`
}

type ProductUpdateRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price,omitempty" validate:"omitempty,min=0"`
	Status      *ProductStatus   `json:"status,omitempty" validate:"omitempty,oneof=available unavailable"`
}

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodMobile = "mobile"
)

func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobile:
		return true
	default:
		return false
	}
}

// Cart maps product id to requested quantity.
type Cart map[string]int

type CheckoutRequest struct {
	Cart          Cart   `json:"cart"`
	CustomerName  string `json:"customer_name" validate:"max=200"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=cash card mobile"`
}

type CheckoutResponse struct {
	TransactionID   string            `json:"transaction_id"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ItemCount       int               `json:"item_count"`
	PaymentMethod   string            `json:"payment_method"`
	Items           []TransactionItem `json:"items"`
	TransactionDate time.Time         `json:"transaction_date"`
}

type Transaction struct {
	ID              string            `json:"id"`
	TellerID        string            `json:"teller_id"`
	TellerUsername  string            `json:"teller_username"`
	CustomerName    string            `json:"customer_name"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	PaymentMethod   string            `json:"payment_method"`
	TransactionDate time.Time         `json:"transaction_date"`
	Items           []TransactionItem `json:"items"`
}

// ItemsTotal is the sum of quantity × price over all line items.
func (t Transaction) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range t.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

type TransactionItem struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
}

func (i TransactionItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SalesQuery bounds an aggregation over transaction headers. Nil bounds are
// open; From is inclusive and To exclusive.
type SalesQuery struct {
	From     *time.Time
	To       *time.Time
	TellerID string
}

type TellerSales struct {
	TellerID         string          `json:"teller_id"`
	TellerUsername   string          `json:"teller_username"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	TransactionCount int64           `json:"transaction_count"`
}

type SalesWindow struct {
	Name string        `json:"name"`
	From *time.Time    `json:"from,omitempty"`
	To   *time.Time    `json:"to,omitempty"`
	Rows []TellerSales `json:"rows"`
}

type SalesReport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Windows     []SalesWindow `json:"windows"`
}

// Window returns the named window or false when the report lacks it.
func (r SalesReport) Window(name string) (SalesWindow, bool) {
	for _, w := range r.Windows {
		if w.Name == name {
			return w, true
		}
	}
	return SalesWindow{}, false
}

type TodaySalesResponse struct {
	Date             string          `json:"date"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	TransactionCount int64           `json:"transaction_count"`
	Transactions     []Transaction   `json:"transactions"`
}

type AdminDashboard struct {
	TotalUsers  int64 `json:"total_users"`
	ActiveUsers int64 `json:"active_users"`
}

type ManagerDashboard struct {
	DailySales   decimal.Decimal `json:"daily_sales"`
	WeeklySales  decimal.Decimal `json:"weekly_sales"`
	MonthlySales decimal.Decimal `json:"monthly_sales"`
	TotalSales   decimal.Decimal `json:"total_sales"`
}

type TellerDashboard struct {
	TodaySales        decimal.Decimal `json:"today_sales"`
	TodayTransactions int64           `json:"today_transactions"`
}

type Dashboard struct {
	Role    Role              `json:"role"`
	Admin   *AdminDashboard   `json:"admin,omitempty"`
	Manager *ManagerDashboard `json:"manager,omitempty"`
	Teller  *TellerDashboard  `json:"teller,omitempty"`
}

package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Collection names under a user's namespace.
const (
	CollectionGoals        = "goals"
	CollectionTransactions = "transactions"
	CollectionRecaps       = "recaps"
)

const (
	Health        GoalCategory = "Health"
	Career        GoalCategory = "Career"
	Personal      GoalCategory = "Personal"
	Financial     GoalCategory = "Financial"
	Education     GoalCategory = "Education"
	Relationships GoalCategory = "Relationships"
)

const (
	NotStarted GoalStatus = "not-started"
	InProgress GoalStatus = "in-progress"
	Completed  GoalStatus = "completed"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	USD Currency = "USD"
	THB Currency = "THB"
	MMK Currency = "MMK"

	DefaultCurrency = USD
)

const (
	Daily   RecapType = "Daily"
	Weekly  RecapType = "Weekly"
	Monthly RecapType = "Monthly"
	Yearly  RecapType = "Yearly"
)

type (
	GoalCategory string
	GoalStatus   string
	TxType       string
	Currency     string
	RecapType    string

	// Identity is the authenticated principal every collection is scoped to.
	Identity struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName,omitempty"`
	}

	Goal struct {
		ID        string       `json:"id"`
		Title     string       `json:"title"`
		Category  GoalCategory `json:"category"`
		Status    GoalStatus   `json:"status"`
		Year      int          `json:"year"`
		CreatedAt Timestamp    `json:"createdAt"`
		UpdatedAt Timestamp    `json:"updatedAt"`
	}

	Transaction struct {
		ID          string          `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Type        TxType          `json:"type"`
		Category    string          `json:"category"`
		Currency    Currency        `json:"currency"`
		Date        Timestamp       `json:"date"`
		CreatedAt   Timestamp       `json:"createdAt"`
		UpdatedAt   Timestamp       `json:"updatedAt"`
	}

	Recap struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Content   string    `json:"content"`
		Type      RecapType `json:"type"`
		Date      Timestamp `json:"date"`
		CreatedAt Timestamp `json:"createdAt"`
		UpdatedAt Timestamp `json:"updatedAt"`
	}
)

var (
	GoalCategories = []GoalCategory{Health, Career, Personal, Financial, Education, Relationships}
	GoalStatuses   = []GoalStatus{NotStarted, InProgress, Completed}
	Currencies     = []Currency{USD, THB, MMK}
	RecapTypes     = []RecapType{Daily, Weekly, Monthly, Yearly}

	// TransactionCategories lists the categories allowed for each transaction type.
	TransactionCategories = map[TxType][]string{
		Income:  {"Salary", "Freelance", "Investment", "Gift", "Other Income"},
		Expense: {"Food", "Transport", "Shopping", "Bills", "Entertainment", "Health", "Education", "Other Expense"},
	}
)

var (
	ErrUnauthenticated  = errors.New("user not authenticated")
	ErrNotFound         = errors.New("document not found")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyContent     = errors.New("empty content")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid type")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidDate      = errors.New("invalid date")
)

var validationErrors = []error{
	ErrEmptyTitle, ErrEmptyDescription, ErrEmptyContent, ErrInvalidCategory, ErrInvalidStatus,
	ErrInvalidYear, ErrInvalidAmount, ErrInvalidType, ErrInvalidCurrency, ErrInvalidDate,
}

// IsValidation reports whether err is one of the record validation errors.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (c GoalCategory) Valid() bool {
	for _, v := range GoalCategories {
		if c == v {
			return true
		}
	}
	return false
}

func (s GoalStatus) Valid() bool {
	for _, v := range GoalStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (c Currency) Valid() bool {
	for _, v := range Currencies {
		if c == v {
			return true
		}
	}
	return false
}

// OrDefault maps an unset currency to USD.
func (c Currency) OrDefault() Currency {
	if strings.TrimSpace(string(c)) == "" {
		return DefaultCurrency
	}
	return c
}

func (t RecapType) Valid() bool {
	for _, v := range RecapTypes {
		if t == v {
			return true
		}
	}
	return false
}

// AllowsCategory reports whether category belongs to the allowed set of t.
func (t TxType) AllowsCategory(category string) bool {
	for _, c := range TransactionCategories[t] {
		if c == category {
			return true
		}
	}
	return false
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if !g.Category.Valid() {
		return ErrInvalidCategory
	}
	if !g.Status.Valid() {
		return ErrInvalidStatus
	}
	if g.Year < 1900 || g.Year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Type.AllowsCategory(t.Category) {
		return ErrInvalidCategory
	}
	if !t.Currency.OrDefault().Valid() {
		return ErrInvalidCurrency
	}
	if _, ok := t.Date.Resolve(); !ok {
		return ErrInvalidDate
	}
	return nil
}

func (r Recap) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if !r.Type.Valid() {
		return ErrInvalidType
	}
	if _, ok := r.Date.Resolve(); !ok {
		return ErrInvalidDate
	}
	return nil
}

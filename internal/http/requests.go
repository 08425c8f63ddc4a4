package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"yeardash/internal/core"
)

// errEmptyPatch is returned when an update names no field.
var errEmptyPatch = errors.New("no fields to update")

// CredentialsRequest is the body of sign-in. Format checks are left to the
// identity provider so its messages reach the client unchanged.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type SignUpRequest struct {
	Email       string `json:"email" validate:"required,max=254"`
	Password    string `json:"password" validate:"required,max=128"`
	DisplayName string `json:"displayName" validate:"max=100"`
}

// Amount accepts a decimal written either as a JSON number or a string.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

type GoalRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Category string `json:"category" validate:"required"`
	Status   string `json:"status" validate:"required"`
	Year     int    `json:"year" validate:"required,gte=1900,max=9999"`
}

func (g GoalRequest) Goal() core.Goal {
	return core.Goal{
		Title:    sanitizeInput(g.Title),
		Category: core.GoalCategory(g.Category),
		Status:   core.GoalStatus(g.Status),
		Year:     g.Year,
	}
}

type TransactionRequest struct {
	Description string `json:"description" validate:"required,max=200"`
	Amount      Amount `json:"amount" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=income expense"`
	Category    string `json:"category" validate:"required"`
	Currency    string `json:"currency" validate:"omitempty,oneof=USD THB MMK"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
}

// Transaction builds the record. Dates are kept as the form wrote them.
func (t TransactionRequest) Transaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(string(t.Amount))
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Description: sanitizeInput(t.Description),
		Amount:      amount,
		Type:        core.TxType(t.Type),
		Category:    sanitizeInput(t.Category),
		Currency:    core.Currency(t.Currency).OrDefault(),
		Date:        core.TextTimestamp(t.Date),
	}, nil
}

type RecapRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=20000"`
	Type    string `json:"type" validate:"required,oneof=Daily Weekly Monthly Yearly"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (r RecapRequest) Recap() core.Recap {
	return core.Recap{
		Title:   sanitizeInput(r.Title),
		Content: strings.TrimSpace(r.Content),
		Type:    core.RecapType(r.Type),
		Date:    core.TextTimestamp(r.Date),
	}
}

type GoalPatch struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
	Year     *int    `json:"year" validate:"omitempty,gte=1900,max=9999"`
}

// Fields returns the fields to merge into the stored goal.
func (p GoalPatch) Fields() (map[string]any, error) {
	fields := map[string]any{}
	if p.Title != nil {
		title := sanitizeInput(*p.Title)
		if title == "" {
			return nil, core.ErrEmptyTitle
		}
		fields["title"] = title
	}
	if p.Category != nil {
		if !core.GoalCategory(*p.Category).Valid() {
			return nil, core.ErrInvalidCategory
		}
		fields["category"] = *p.Category
	}
	if p.Status != nil {
		if !core.GoalStatus(*p.Status).Valid() {
			return nil, core.ErrInvalidStatus
		}
		fields["status"] = *p.Status
	}
	if p.Year != nil {
		fields["year"] = *p.Year
	}
	if len(fields) == 0 {
		return nil, errEmptyPatch
	}
	return fields, nil
}

type TransactionPatch struct {
	Description *string `json:"description" validate:"omitempty,max=200"`
	Amount      *Amount `json:"amount"`
	Type        *string `json:"type" validate:"omitempty,oneof=income expense"`
	Category    *string `json:"category"`
	Currency    *string `json:"currency" validate:"omitempty,oneof=USD THB MMK"`
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// Fields returns the fields to merge into the stored transaction. A
// category is only accepted together with the type it belongs to.
func (p TransactionPatch) Fields() (map[string]any, error) {
	fields := map[string]any{}
	if p.Description != nil {
		desc := sanitizeInput(*p.Description)
		if desc == "" {
			return nil, core.ErrEmptyDescription
		}
		fields["description"] = desc
	}
	if p.Amount != nil {
		amount, err := core.ParseAmount(string(*p.Amount))
		if err != nil {
			return nil, err
		}
		fields["amount"] = core.AmountField(amount)
	}
	if p.Type != nil {
		fields["type"] = *p.Type
	}
	if p.Category != nil {
		if p.Type == nil || !core.TxType(*p.Type).AllowsCategory(*p.Category) {
			return nil, core.ErrInvalidCategory
		}
		fields["category"] = *p.Category
	}
	if p.Currency != nil {
		fields["currency"] = *p.Currency
	}
	if p.Date != nil {
		fields["date"] = *p.Date
	}
	if len(fields) == 0 {
		return nil, errEmptyPatch
	}
	return fields, nil
}

type RecapPatch struct {
	Title   *string `json:"title" validate:"omitempty,max=200"`
	Content *string `json:"content" validate:"omitempty,max=20000"`
	Type    *string `json:"type" validate:"omitempty,oneof=Daily Weekly Monthly Yearly"`
	Date    *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (p RecapPatch) Fields() (map[string]any, error) {
	fields := map[string]any{}
	if p.Title != nil {
		title := sanitizeInput(*p.Title)
		if title == "" {
			return nil, core.ErrEmptyTitle
		}
		fields["title"] = title
	}
	if p.Content != nil {
		content := strings.TrimSpace(*p.Content)
		if content == "" {
			return nil, core.ErrEmptyContent
		}
		fields["content"] = content
	}
	if p.Type != nil {
		fields["type"] = *p.Type
	}
	if p.Date != nil {
		fields["date"] = *p.Date
	}
	if len(fields) == 0 {
		return nil, errEmptyPatch
	}
	return fields, nil
}

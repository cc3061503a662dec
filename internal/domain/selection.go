package domain

import (
	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/pkg/validator"
)

// SelectionContext is the per-request input to gateway selection. It is
// immutable once built; getters hand out copies of mutable fields.
type SelectionContext struct {
	amount          decimal.Decimal
	currency        string
	customerID      string
	userID          string
	customerCountry string
	testGroup       string
	riskFlags       []string
	metadata        map[string]string
}

// SelectionOption customizes a SelectionContext at construction time.
type SelectionOption func(*SelectionContext)

// WithCustomerID sets the customer identifier.
func WithCustomerID(id string) SelectionOption {
	return func(c *SelectionContext) { c.customerID = id }
}

// WithUserID sets the user identifier.
func WithUserID(id string) SelectionOption {
	return func(c *SelectionContext) { c.userID = id }
}

// WithCustomerCountry sets the ISO-3166 alpha-2 country of the customer.
func WithCustomerCountry(country string) SelectionOption {
	return func(c *SelectionContext) { c.customerCountry = NormalizeCurrency(country) }
}

// WithTestGroup assigns the request to an A/B test group ("A" or "B").
func WithTestGroup(group string) SelectionOption {
	return func(c *SelectionContext) { c.testGroup = group }
}

// WithRiskFlags attaches risk flags.
func WithRiskFlags(flags ...string) SelectionOption {
	return func(c *SelectionContext) { c.riskFlags = append([]string(nil), flags...) }
}

// WithMetadata attaches arbitrary metadata.
func WithMetadata(m map[string]string) SelectionOption {
	return func(c *SelectionContext) { c.metadata = CopyMetadata(m) }
}

// NewSelectionContext builds an immutable selection context.
func NewSelectionContext(amount decimal.Decimal, currency string, opts ...SelectionOption) SelectionContext {
	c := SelectionContext{
		amount:   amount,
		currency: NormalizeCurrency(currency),
		metadata: map[string]string{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c SelectionContext) Amount() decimal.Decimal { return c.amount }
func (c SelectionContext) Currency() string        { return c.currency }
func (c SelectionContext) CustomerID() string      { return c.customerID }
func (c SelectionContext) UserID() string          { return c.userID }
func (c SelectionContext) CustomerCountry() string { return c.customerCountry }
func (c SelectionContext) TestGroup() string       { return c.testGroup }

// RiskFlags returns a copy of the risk flags.
func (c SelectionContext) RiskFlags() []string {
	return append([]string(nil), c.riskFlags...)
}

// Metadata returns a copy of the metadata.
func (c SelectionContext) Metadata() map[string]string {
	return CopyMetadata(c.metadata)
}

type selectionContextInput struct {
	Amount          float64 `json:"amount" validate:"gte=0"`
	Currency        string  `json:"currency" validate:"required,len=3,alpha"`
	CustomerCountry string  `json:"customer_country" validate:"omitempty,len=2,alpha"`
	TestGroup       string  `json:"test_group" validate:"omitempty,oneof=A B"`
}

// Validate checks the context fields that strategies rely on.
func (c SelectionContext) Validate() error {
	f, _ := c.amount.Float64()
	return validator.Validate(selectionContextInput{
		Amount:          f,
		Currency:        c.currency,
		CustomerCountry: c.customerCountry,
		TestGroup:       c.testGroup,
	})
}

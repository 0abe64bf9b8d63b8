package entity

import "cmp"

// BudgetCategories group budget lines, in report order.
var BudgetCategories = Enum{
	Options: []Option{
		{Value: "lugar", Label: "Lugar"},
		{Value: "catering", Label: "Catering"},
		{Value: "fotografia", Label: "Fotografía y vídeo"},
		{Value: "musica", Label: "Música"},
		{Value: "vestimenta", Label: "Vestimenta"},
		{Value: "decoracion", Label: "Decoración"},
		{Value: "viaje", Label: "Viaje"},
		{Value: "otro", Label: "Otro"},
	},
	Fallback: "otro",
}

// BudgetItem is one expense line.
type BudgetItem struct {
	ID        string   `json:"id"`
	Concept   string   `json:"concept"`
	Category  string   `json:"category"`
	Estimated float64  `json:"estimated"`
	Actual    *float64 `json:"actual"`
	Paid      bool     `json:"paid"`
	DueDate   string   `json:"dueDate"`
	Vendor    string   `json:"vendor"`
	Notes     string   `json:"notes"`
	CreatedAt *int64   `json:"createdAt"`
	UpdatedAt *int64   `json:"updatedAt"`
}

// EntityID implements Entity.
func (b BudgetItem) EntityID() string { return b.ID }

// Clone implements Entity.
func (b BudgetItem) Clone() BudgetItem {
	b.Actual = copyFloat(b.Actual)
	b.CreatedAt = copyInt64(b.CreatedAt)
	b.UpdatedAt = copyInt64(b.UpdatedAt)
	return b
}

// Record implements Entity.
func (b BudgetItem) Record() Record {
	return Record{
		"id":        b.ID,
		"concept":   b.Concept,
		"category":  b.Category,
		"estimated": b.Estimated,
		"actual":    floatValue(b.Actual),
		"paid":      b.Paid,
		"dueDate":   b.DueDate,
		"vendor":    b.Vendor,
		"notes":     b.Notes,
		"createdAt": timestampValue(b.CreatedAt),
		"updatedAt": timestampValue(b.UpdatedAt),
	}
}

// Cost is the actual amount when known, otherwise the estimate.
func (b BudgetItem) Cost() float64 {
	if b.Actual != nil {
		return *b.Actual
	}
	return b.Estimated
}

// NormalizeBudgetItem builds a BudgetItem from r, or reports false when the
// concept is blank.
func NormalizeBudgetItem(r Record) (BudgetItem, bool) {
	if r == nil {
		return BudgetItem{}, false
	}
	concept := Text(r["concept"])
	if concept == "" {
		return BudgetItem{}, false
	}
	return BudgetItem{
		ID:        normalizeID(r["id"]),
		Concept:   concept,
		Category:  BudgetCategories.Normalize(r["category"]),
		Estimated: Amount(r["estimated"]),
		Actual:    OptionalAmount(r["actual"]),
		Paid:      Truthy(r["paid"]),
		DueDate:   NormalizeDate(r["dueDate"]),
		Vendor:    Text(r["vendor"]),
		Notes:     Text(r["notes"]),
		CreatedAt: ToTimestamp(r["createdAt"]),
		UpdatedAt: ToTimestamp(r["updatedAt"]),
	}, true
}

// CompareBudgetItems groups by category in declaration order, oldest line
// first within a category.
func CompareBudgetItems(a, b BudgetItem) int {
	if c := cmp.Compare(BudgetCategories.Index(a.Category), BudgetCategories.Index(b.Category)); c != 0 {
		return c
	}
	if c := cmp.Compare(timestampOrZero(a.CreatedAt), timestampOrZero(b.CreatedAt)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func sanitizeBudgetItem(changes Record) Record {
	return newSanitizer(changes).
		identity("concept").
		enum("category", BudgetCategories).
		amount("estimated").
		optional("actual", optionalAmountValue).
		flag("paid").
		date("dueDate").
		text("vendor", "notes").
		createdAt().
		result()
}

// Budget is the budget line collection.
var Budget = Kind[BudgetItem]{
	Name:       "budget",
	StorageKey: "wedding-budget-items",
	Normalize:  NormalizeBudgetItem,
	Compare:    CompareBudgetItems,
	Sanitize:   sanitizeBudgetItem,
}

// BudgetTarget is the overall spending goal, stored outside the item list.
type BudgetTarget struct {
	Amount    float64 `json:"amount"`
	UpdatedAt *int64  `json:"updatedAt"`
}

// BudgetTargetKey is the local storage key and the remote settings
// document id for the budget target.
const BudgetTargetKey = "wedding-budget-target"

// NormalizeBudgetTarget reads a target record; a missing or invalid amount
// is 0.
func NormalizeBudgetTarget(r Record) BudgetTarget {
	return BudgetTarget{
		Amount:    Amount(r["amount"]),
		UpdatedAt: ToTimestamp(r["updatedAt"]),
	}
}

// Record returns the target as a document.
func (t BudgetTarget) Record() Record {
	return Record{"amount": t.Amount, "updatedAt": timestampValue(t.UpdatedAt)}
}

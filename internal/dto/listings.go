package dto

// IdentityFilter selects stored listings that share an identity key.
// Address is only part of the key when it is non-nil.
type IdentityFilter struct {
	Name    string
	Address *string
}

// ListFilter contains query parameters for listing lookups.
type ListFilter struct {
	Q             string
	BatchID       string
	Category      string
	WebsiteStatus string
	Sort          string
	Skip          int
	Limit         int
}

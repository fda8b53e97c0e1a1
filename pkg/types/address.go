package types

import "strings"

// Address is the postal payload stored as jsonb alongside orders and users.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// PostalComplete reports whether the address carries the minimum data a
// carrier needs (postal code and country).
func (a *Address) PostalComplete() bool {
	if a == nil {
		return false
	}
	return strings.TrimSpace(a.PostalCode) != "" && strings.TrimSpace(a.Country) != ""
}

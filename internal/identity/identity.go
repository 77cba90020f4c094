// package identity describes the authenticated account a request acts as
package identity

// Identity is the account resolved from a request's bearer credential. It is
// passed explicitly to every operation that needs to know who is asking.
type Identity struct {
	ID       int64
	Username string
}

// Equal reports whether both identities refer to the same account
func (i Identity) Equal(other Identity) bool {
	return i.ID == other.ID
}

// IsZero reports whether the identity was never resolved
func (i Identity) IsZero() bool {
	return i.ID == 0
}

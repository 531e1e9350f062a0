package models

// Identity is the verified caller as reported by the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// IdentityID returns the id of a possibly nil identity.
func IdentityID(id *Identity) string {
	if id == nil {
		return ""
	}
	return id.ID
}

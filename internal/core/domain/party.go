package domain

// Role is the marketplace role attached to a user account.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Caller is the identity attached to a request by the authentication layer.
type Caller struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the caller may act on any transaction.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Party is the display summary of a buyer or seller.
type Party struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`
}

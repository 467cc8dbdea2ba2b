package models

type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleInstructor UserRole = "instructor"
	RoleProctor    UserRole = "proctor"
	RoleAdmin      UserRole = "admin"
)

// User is the identity extracted from the Casdoor token; the service
// does not persist users itself.
type User struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	ClientID string   `json:"client_id"`
	Role     UserRole `json:"role"`
}

package models

// Scope carries the tenant and acting user for every service call.
// Handlers build it from the authenticated request; services never
// read tenant state from anywhere else.
type Scope struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
}

func (s Scope) IsValid() bool {
	return s.ClientID != "" && s.UserID != ""
}

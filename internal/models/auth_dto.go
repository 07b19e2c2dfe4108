package models

const (
	MwUserIDKey = "userID"
	MwRoleKey   = "userRole"
	MwTokenKey  = "token"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest carries no validate tag on the refresh token: an empty
// value must reach the service so it can answer with its own
// missing-token error instead of a generic validation failure.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type SessionResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type LogoutResponse struct {
	OK bool `json:"ok"`
}

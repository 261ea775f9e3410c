package models

// LoginRequest is the body of POST /api/internal/login.
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	UserID      int64    `json:"user_id"`
	Username    string   `json:"username"`
	CSRFToken   string   `json:"csrf_token,omitempty"`
	Permissions []string `json:"permissions"`
	ExpiresIn   int      `json:"expires_in"`
}

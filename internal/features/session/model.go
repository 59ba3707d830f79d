package session

import (
	"strconv"
	"time"

	"records-console/internal/features/permission"
	"records-console/internal/gateway"
)

// Session is one logged-in console user. The permission matrix is loaded once at
// login and kept for the session's lifetime; backend changes are seen on next login.
type Session struct {
	ID         string             `json:"id"`
	User       gateway.UserInfo   `json:"user"`
	Credential gateway.Credential `json:"-"`
	Matrix     *permission.Matrix `json:"-"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

func (s *Session) UserID() string {
	return strconv.Itoa(s.User.ID)
}

func (s *Session) Evaluator() *permission.Evaluator {
	return permission.NewEvaluator(s.Matrix)
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type LoginResult struct {
	Token       string                  `json:"token"`
	Session     *Session                `json:"session"`
	Permissions []permission.Permission `json:"permissions"`
}

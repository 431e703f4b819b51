package user

import "time"

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"

	// DefaultRank is the label every new account starts with.
	DefaultRank = "Новичок"

	// DefaultPassword is stored when registration omits a password.
	DefaultPassword = "demo_pass"
)

// User is the public view of a users row. PasswordHash never leaves the service.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	AvatarURL    *string   `json:"avatar_url"`
	Role         string    `json:"role"`
	Rank         string    `json:"rank"`
	PostsCount   int       `json:"posts_count"`
	Reputation   int       `json:"reputation"`
	CreatedAt    time.Time `json:"created_at"`
	PasswordHash string    `json:"-"`
}

// RegisterInput carries the registration body. Nil fields reach the database as NULL.
type RegisterInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type LoginInput struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type RoleInput struct {
	UserID *int64  `json:"user_id"`
	Role   *string `json:"role"`
}

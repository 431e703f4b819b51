package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	GetUserByID(ctx context.Context, id int64) (*User, error)
	Register(ctx context.Context, in RegisterInput) (*User, error)
	Login(ctx context.Context, in LoginInput) (*User, error)
	UpdateRole(ctx context.Context, in RoleInput) error
}

type Options struct {
	// VerifyPassword makes Login compare the supplied password against the
	// stored bcrypt hash. When false any password, or none, is accepted.
	VerifyPassword bool
}

type service struct {
	repo Repository
	opts Options
}

func NewService(repo Repository, opts Options) Service {
	return &service{repo: repo, opts: opts}
}

func (s *service) GetUserByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Int64("user_id", id).Msg("service: user not found by id")
			return nil, ErrNotFound
		}

		log.Error().Err(err).Int64("user_id", id).Msg("service: failed to get user by id")
		return nil, fmt.Errorf("service: failed to get user by id %d: %w", id, err)
	}

	return u, nil
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	password := DefaultPassword
	if in.Password != nil {
		password = *in.Password
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate password hash")
		return nil, fmt.Errorf("service: internal error hashing password: %w", err)
	}

	created, err := s.repo.Create(ctx, in.Username, in.Email, string(hash))
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			log.Warn().Err(err).Msg("service: registration with taken username")
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to register user: %w", err)
	}

	log.Info().Int64("user_id", created.ID).Str("username", created.Username).Msg("service: user registered")

	return created, nil
}

func (s *service) Login(ctx context.Context, in LoginInput) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to look up user for login")
		return nil, fmt.Errorf("service: failed to log in: %w", err)
	}

	if s.opts.VerifyPassword {
		var password string
		if in.Password != nil {
			password = *in.Password
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			log.Warn().Int64("user_id", u.ID).Msg("service: password mismatch")
			return nil, ErrInvalidCredentials
		}
	}

	return u, nil
}

func (s *service) UpdateRole(ctx context.Context, in RoleInput) error {
	if err := s.repo.UpdateRole(ctx, in.UserID, in.Role); err != nil {
		log.Error().Err(err).Interface("user_id", in.UserID).Msg("service: failed to update role")
		return fmt.Errorf("service: failed to update role: %w", err)
	}

	log.Info().Interface("user_id", in.UserID).Interface("role", in.Role).Msg("service: user role updated")
	return nil
}

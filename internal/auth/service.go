// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/promptshelf/internal/config"
	"github.com/tomtom215/promptshelf/internal/logging"
)

// Token is a successful login.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// Service verifies admin credentials and issues tokens.
type Service struct {
	mode     string
	jwt      *JWTManager
	username string
	hash     []byte
}

// NewService builds the service for cfg.AuthMode. In jwt mode a plaintext
// admin password is hashed once here and never kept.
func NewService(cfg *config.SecurityConfig) (*Service, error) {
	switch cfg.AuthMode {
	case ModeNone:
		logging.Warn().Msg("Authentication is disabled; every request acts as local-admin")
		return &Service{mode: ModeNone}, nil
	case ModeJWT, "":
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}

	jwtManager, err := NewJWTManager(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AdminUsername == "" {
		return nil, fmt.Errorf("admin username is required in jwt mode")
	}

	var hash []byte
	switch {
	case cfg.AdminPasswordHash != "":
		hash = []byte(cfg.AdminPasswordHash)
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("admin password hash is not a bcrypt hash: %w", err)
		}
	case cfg.AdminPassword != "":
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	default:
		return nil, fmt.Errorf("admin password or password hash is required in jwt mode")
	}

	return &Service{
		mode:     ModeJWT,
		jwt:      jwtManager,
		username: cfg.AdminUsername,
		hash:     hash,
	}, nil
}

// Mode returns jwt or none.
func (s *Service) Mode() string {
	return s.mode
}

// Login checks credentials and issues a token.
func (s *Service) Login(username, password string) (*Token, error) {
	if s.mode != ModeJWT {
		return nil, fmt.Errorf("login is not available in %s mode", s.mode)
	}

	// Both checks always run.
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.hash, []byte(password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.jwt.GenerateToken(username, RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &Token{Token: token, ExpiresAt: expiresAt.UTC(), Username: username, Role: RoleAdmin}, nil
}

// Authenticate resolves a bearer token to claims. In none mode every caller
// is LocalAdmin.
func (s *Service) Authenticate(token string) (*Claims, error) {
	if s.mode == ModeNone {
		return &Claims{Username: LocalAdmin, Role: RoleAdmin}, nil
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	return s.jwt.ValidateToken(token)
}

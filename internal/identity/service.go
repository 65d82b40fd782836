/*
 *    Copyright 2026 donelist
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/repository"
)

var (
	// ErrInvalidCredentials is returned when sign-in credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when the email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when the password is too short.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when the password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrUserExists is returned when the email is already registered.
	ErrUserExists = errors.New("email is already registered")
	// ErrUserNotFound is returned when no account matches.
	ErrUserNotFound = errors.New("user not found")
)

const bcryptCost = 12

// Service is the identity provider: it owns accounts, issues tokens, and
// broadcasts auth-state transitions to registered listeners. A listener
// receives the signed-in user, or nil on sign-out.
type Service struct {
	users  repository.UserRepository
	tokens *TokenManager
	logger *zap.Logger

	mu           sync.Mutex
	listeners    map[int]func(*models.User)
	nextListener int
}

// NewService creates a new identity Service.
func NewService(users repository.UserRepository, tokens *TokenManager, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		logger:    logger.Named("identity"),
		listeners: make(map[int]func(*models.User)),
	}
}

// OnAuthStateChange registers a listener for sign-in and sign-out
// transitions. The returned function unregisters it.
func (s *Service) OnAuthStateChange(fn func(*models.User)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) notify(user *models.User) {
	s.mu.Lock()
	fns := make([]func(*models.User), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(user)
	}
}

// SignUp registers a new account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*models.User, *oauth2.Token, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, nil, ErrPasswordTooLong
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	id, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id

	token, err := s.issueToken(user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("User signed up", zap.String("userId", user.ID))
	s.notify(user)
	return user, token, nil
}

// SignIn authenticates an account and broadcasts the signed-in state.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.User, *oauth2.Token, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("User signed in", zap.String("userId", user.ID))
	s.notify(user)
	return user, token, nil
}

// SignOut broadcasts the signed-out state. Tokens are stateless, so nothing
// is revoked server-side; session teardown is driven by the broadcast.
func (s *Service) SignOut(userID string) {
	s.logger.Info("User signed out", zap.String("userId", userID))
	s.notify(nil)
}

// Refresh exchanges a valid refresh token for a fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(user)
}

// Verify validates an access token and returns its claims.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	return s.tokens.ValidateAccessToken(tokenString)
}

// Reload re-reads the account record, returning its current state.
func (s *Service) Reload(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdatePicture sets the account's picture URL and returns the reloaded
// record.
func (s *Service) UpdatePicture(ctx context.Context, userID, photoURL string) (*models.User, error) {
	user, err := s.Reload(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PictureURL = photoURL
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update picture: %w", err)
	}
	return s.Reload(ctx, userID)
}

func (s *Service) issueToken(user *models.User) (*oauth2.Token, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
		Expiry:       time.Now().Add(s.tokens.AccessTTL()),
	}, nil
}

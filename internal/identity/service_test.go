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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/repository"
)

func newTestService() *Service {
	tokens := NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)
	return NewService(repository.NewInMemoryUserRepository(), tokens, zap.NewNop())
}

func TestSignUpValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"bad email", "not-an-email", "password123", ErrInvalidEmail},
		{"short password", "a@example.com", "short", ErrWeakPassword},
		{"long password", "a@example.com", string(make([]byte, 80)), ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.SignUp(ctx, tt.email, tt.password, "Test")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	user, token, err := svc.SignUp(ctx, "alice@example.com", "password123", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)

	// Duplicate registration is rejected.
	_, _, err = svc.SignUp(ctx, "alice@example.com", "password123", "Alice")
	assert.ErrorIs(t, err, ErrUserExists)

	_, _, err = svc.SignIn(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.SignIn(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	signedIn, token, err := svc.SignIn(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, signedIn.ID)

	claims, err := svc.Verify(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestRefresh(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, token, err := svc.SignUp(ctx, "bob@example.com", "password123", "Bob")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, token.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// An access token is not accepted on the refresh path.
	_, err = svc.Refresh(ctx, token.AccessToken)
	assert.Error(t, err)
}

func TestAuthStateBroadcast(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	var states []*models.User
	unsubscribe := svc.OnAuthStateChange(func(u *models.User) {
		states = append(states, u)
	})

	user, _, err := svc.SignUp(ctx, "carol@example.com", "password123", "Carol")
	require.NoError(t, err)
	svc.SignOut(user.ID)

	require.Len(t, states, 2)
	assert.Equal(t, user.ID, states[0].ID)
	assert.Nil(t, states[1])

	unsubscribe()
	svc.SignOut(user.ID)
	assert.Len(t, states, 2)
}

func TestUpdatePicture(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	user, _, err := svc.SignUp(ctx, "dave@example.com", "password123", "Dave")
	require.NoError(t, err)

	updated, err := svc.UpdatePicture(ctx, user.ID, "https://cdn.example.com/p.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/p.png", updated.PictureURL)

	reloaded, err := svc.Reload(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/p.png", reloaded.PictureURL)

	_, err = svc.Reload(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

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

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/cache"
	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/prefs"
	"donelist.dev/donelist/internal/repository"
)

func newTestManager(t *testing.T) (*Manager, *repository.InMemoryTaskRepository, *repository.InMemoryPreferenceRepository) {
	t.Helper()
	taskRepo := repository.NewInMemoryTaskRepository(zap.NewNop())
	prefRepo := repository.NewInMemoryPreferenceRepository(zap.NewNop())
	reconciler := prefs.NewReconciler(prefRepo, cache.NewMemoryCache(), cache.NewMemoryCache(), otel.Tracer("test"), zap.NewNop())
	return NewManager(taskRepo, reconciler, nil, time.Hour, zap.NewNop()), taskRepo, prefRepo
}

func alice() *models.User {
	return &models.User{ID: "alice", Email: "alice@example.com", DisplayName: "Alice"}
}

func bob() *models.User {
	return &models.User{ID: "bob", Email: "bob@example.com", DisplayName: "Bob"}
}

func TestSignInStartsSession(t *testing.T) {
	m, taskRepo, prefRepo := newTestManager(t)
	ctx := context.Background()

	m.HandleAuthState(alice())
	session := m.Active("alice")
	require.NotNil(t, session)
	defer m.Close()

	// The live subscription delivers remote inserts.
	task := models.Task{UserID: "alice", Text: "write report", Category: models.CategoryWork}
	_, err := taskRepo.Add(ctx, &task)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(session.Tasks.Tasks()) == 1
	}, time.Second, 5*time.Millisecond)

	// Preferences were initialized in the authoritative store.
	doc, found, err := prefRepo.GetPreferences(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, doc.PreferencePatch.Incomplete())
	assert.Equal(t, models.DefaultPreferences(), session.Preferences())
}

func TestSignOutTearsDownDeterministically(t *testing.T) {
	m, taskRepo, _ := newTestManager(t)
	ctx := context.Background()

	m.HandleAuthState(alice())
	session := m.Active("alice")
	require.NotNil(t, session)

	m.HandleAuthState(nil)
	assert.Nil(t, m.Active("alice"))

	// No further snapshots reach the torn-down session.
	task := models.Task{UserID: "alice", Text: "after sign-out", Category: models.CategoryWork}
	_, err := taskRepo.Add(ctx, &task)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, session.Tasks.Tasks())
}

func TestUserChangeReplacesSession(t *testing.T) {
	m, taskRepo, _ := newTestManager(t)
	ctx := context.Background()

	// Seed a task for each user.
	for _, task := range []models.Task{
		{UserID: "alice", Text: "hers", Category: models.CategoryWork},
		{UserID: "bob", Text: "his", Category: models.CategoryWork},
	} {
		task := task
		_, err := taskRepo.Add(ctx, &task)
		require.NoError(t, err)
	}

	m.HandleAuthState(alice())
	aliceSession := m.Active("alice")
	require.NotNil(t, aliceSession)
	require.Eventually(t, func() bool {
		return len(aliceSession.Tasks.Tasks()) == 1
	}, time.Second, 5*time.Millisecond)

	// A different user signing in replaces the session outright.
	m.HandleAuthState(bob())
	assert.Nil(t, m.Active("alice"))
	bobSession := m.Active("bob")
	require.NotNil(t, bobSession)
	defer m.Close()

	require.Eventually(t, func() bool {
		return len(bobSession.Tasks.Tasks()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "his", bobSession.Tasks.Tasks()[0].Text)

	// A repeated signal for the already-active user is a no-op.
	m.HandleAuthState(bob())
	assert.Same(t, bobSession, m.Active("bob"))
}

func TestSessionPreferenceWrites(t *testing.T) {
	m, _, prefRepo := newTestManager(t)
	ctx := context.Background()

	m.HandleAuthState(alice())
	session := m.Active("alice")
	require.NotNil(t, session)

	ok, err := session.SetPreference(ctx, "darkMode", true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, session.Preferences().DarkMode)

	doc, found, err := prefRepo.GetPreferences(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, *doc.DarkMode)

	// Sign-out performs the final periodic save without losing the change.
	m.HandleAuthState(nil)
	doc, found, err = prefRepo.GetPreferences(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, *doc.DarkMode)
}

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

package profile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/cache"
	"donelist.dev/donelist/internal/identity"
	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/objectstore"
	"donelist.dev/donelist/internal/repository"
)

type fixture struct {
	service  *Service
	identity *identity.Service
	repo     repository.PreferenceRepository
	objects  *objectstore.MemoryStore
	local    *cache.MemoryCache
	session  *cache.MemoryCache
	user     *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens := identity.NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)
	ident := identity.NewService(repository.NewInMemoryUserRepository(), tokens, zap.NewNop())
	user, _, err := ident.SignUp(context.Background(), "alice@example.com", "password123", "Alice Smith")
	require.NoError(t, err)

	repo := repository.NewInMemoryPreferenceRepository(zap.NewNop())
	objects := objectstore.NewMemoryStore()
	local := cache.NewMemoryCache()
	session := cache.NewMemoryCache()
	svc := NewService(ident, repo, objects, local, session, otel.Tracer("test"), zap.NewNop())
	return &fixture{
		service:  svc,
		identity: ident,
		repo:     repo,
		objects:  objects,
		local:    local,
		session:  session,
		user:     user,
	}
}

func pictureBlob(t *testing.T, photoURL, userID string, ts int64) string {
	t.Helper()
	blob, err := json.Marshal(models.CachedPicture{PhotoURL: photoURL, UserID: userID, Timestamp: ts})
	require.NoError(t, err)
	return string(blob)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Non-image content is rejected regardless of size.
	_, err := f.service.Upload(ctx, f.user.ID, "resume.pdf", "application/pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, ErrNotImage)

	// An oversized image is rejected before upload.
	_, err = f.service.Upload(ctx, f.user.ID, "big.png", "image/png", make([]byte, 6<<20))
	assert.ErrorIs(t, err, ErrTooLarge)

	// Nothing reached the object store.
	_, found, err := f.local.Get(ctx, picKey(f.user.ID))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUploadPropagatesToAllTiers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	photoURL, err := f.service.Upload(ctx, f.user.ID, "me.jpg", "image/jpeg", make([]byte, 2<<20))
	require.NoError(t, err)
	require.NotEmpty(t, photoURL)

	// Identity provider reflects the new value.
	reloaded, err := f.identity.Reload(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, photoURL, reloaded.PictureURL)

	// Remote profile and backup documents were written.
	doc, found, err := f.repo.GetProfile(ctx, f.user.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, photoURL, doc.PhotoURL)

	backup, found, err := f.repo.GetBackup(ctx, f.user.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, photoURL, backup.ProfilePicture)

	// Both cache tiers carry the value, including the legacy session key.
	for _, probe := range []struct {
		tier cache.Cache
		key  string
	}{
		{f.local, picKey(f.user.ID)},
		{f.session, sessionPicKey(f.user.ID)},
		{f.session, picKey(f.user.ID)},
	} {
		raw, found, err := probe.tier.Get(ctx, probe.key)
		require.NoError(t, err)
		require.True(t, found, probe.key)
		var cached models.CachedPicture
		require.NoError(t, json.Unmarshal([]byte(raw), &cached))
		assert.Equal(t, photoURL, cached.PhotoURL)
	}
}

func TestResolvePicksLatestTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.local.Set(ctx, picKey(f.user.ID),
		pictureBlob(t, "https://cdn.example.com/old.png", f.user.ID, 1_000)))
	require.NoError(t, f.session.Set(ctx, sessionPicKey(f.user.ID),
		pictureBlob(t, "https://cdn.example.com/new.png", f.user.ID, 2_000)))

	got := f.service.Resolve(ctx, f.user)
	assert.Equal(t, "https://cdn.example.com/new.png", got)

	// Self-healing: the losing tiers now carry the winner too.
	doc, found, err := f.repo.GetProfile(ctx, f.user.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://cdn.example.com/new.png", doc.PhotoURL)

	raw, found, err := f.local.Get(ctx, picKey(f.user.ID))
	require.NoError(t, err)
	require.True(t, found)
	var cached models.CachedPicture
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, "https://cdn.example.com/new.png", cached.PhotoURL)
}

func TestResolveIdentityValueAlwaysWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identity.UpdatePicture(ctx, f.user.ID, "https://cdn.example.com/auth.png")
	require.NoError(t, err)
	user, err := f.identity.Reload(ctx, f.user.ID)
	require.NoError(t, err)

	// A cache entry stamped in the near future still loses to identity.
	require.NoError(t, f.local.Set(ctx, picKey(f.user.ID),
		pictureBlob(t, "https://cdn.example.com/cache.png", f.user.ID, time.Now().UnixMilli()+500_000)))

	got := f.service.Resolve(ctx, user)
	assert.Equal(t, "https://cdn.example.com/auth.png", got)
}

func TestResolveIgnoresOtherUsersCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.local.Set(ctx, picKey(f.user.ID),
		pictureBlob(t, "https://cdn.example.com/theirs.png", "someone-else", 5_000)))

	got := f.service.Resolve(ctx, f.user)
	assert.Contains(t, got, "ui-avatars.com")
}

func TestResolvePlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got := f.service.Resolve(ctx, f.user)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Alice+Smith&background=random", got)

	// The placeholder is synthesized, never persisted.
	_, found, err := f.repo.GetProfile(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

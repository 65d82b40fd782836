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

package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/cache"
	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/repository"
)

const testUser = "user-1"

var errRemote = errors.New("remote write failed")

// failingPrefRepo wraps a PreferenceRepository and fails selected operations.
type failingPrefRepo struct {
	repository.PreferenceRepository
	failUpdate bool
	failMerge  bool
	failCreate bool
}

func (f *failingPrefRepo) UpdatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	if f.failUpdate {
		return errRemote
	}
	return f.PreferenceRepository.UpdatePreferences(ctx, userID, patch)
}

func (f *failingPrefRepo) MergePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	if f.failMerge {
		return errRemote
	}
	return f.PreferenceRepository.MergePreferences(ctx, userID, patch)
}

func (f *failingPrefRepo) CreatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	if f.failCreate {
		return errRemote
	}
	return f.PreferenceRepository.CreatePreferences(ctx, userID, patch)
}

type fixture struct {
	reconciler *Reconciler
	repo       *failingPrefRepo
	local      *cache.MemoryCache
	session    *cache.MemoryCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := &failingPrefRepo{PreferenceRepository: repository.NewInMemoryPreferenceRepository(zap.NewNop())}
	local := cache.NewMemoryCache()
	session := cache.NewMemoryCache()
	rec := NewReconciler(repo, local, session, otel.Tracer("test"), zap.NewNop())
	return &fixture{reconciler: rec, repo: repo, local: local, session: session}
}

func cachedBlob(t *testing.T, patch models.PreferencePatch, userID string, ts int64) string {
	t.Helper()
	blob, err := json.Marshal(models.CachedPreferences{PreferencePatch: patch, UserID: userID, Timestamp: ts})
	require.NoError(t, err)
	return string(blob)
}

func boolPtr(b bool) *bool { return &b }

func fontPtr(f models.FontSize) *models.FontSize { return &f }

func TestInitializeCreatesRecordWithDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prefs, err := f.reconciler.Initialize(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences(), prefs)

	doc, ok, err := f.repo.GetPreferences(ctx, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, doc.PreferencePatch.Incomplete())
}

func TestInitializeBackfillsPartialRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A partial record: only darkMode is set.
	require.NoError(t, f.repo.MergePreferences(ctx, testUser, models.PreferencePatch{DarkMode: boolPtr(true)}))

	prefs, err := f.reconciler.Initialize(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, prefs.DarkMode)
	assert.Equal(t, models.FontSizeMedium, prefs.FontSize)

	// The back-filled set was persisted to the authoritative record.
	doc, ok, err := f.repo.GetPreferences(ctx, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, doc.PreferencePatch.Incomplete())
	assert.True(t, *doc.DarkMode)
	assert.Equal(t, models.Remind1Day, *doc.ReminderTime)
}

func TestLoadPrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Session says dark mode on; local says large font and sidebar open;
	// the authoritative record says small font.
	require.NoError(t, f.session.Set(ctx, prefKey(testUser),
		cachedBlob(t, models.PreferencePatch{DarkMode: boolPtr(true)}, testUser, 1)))
	require.NoError(t, f.local.Set(ctx, prefKey(testUser),
		cachedBlob(t, models.PreferencePatch{FontSize: fontPtr(models.FontSizeLarge), SidebarExpanded: boolPtr(true)}, testUser, 2)))
	require.NoError(t, f.repo.MergePreferences(ctx, testUser, models.PreferencePatch{FontSize: fontPtr(models.FontSizeSmall)}))

	prefs := f.reconciler.Load(ctx, testUser)

	// Remote wins for the field it defines, earlier tiers fill the rest.
	assert.Equal(t, models.FontSizeSmall, prefs.FontSize)
	assert.True(t, prefs.DarkMode)
	assert.True(t, prefs.SidebarExpanded)
	// Untouched fields come from the defaults.
	assert.True(t, prefs.AutoSortTasks)
}

func TestLoadSkipsUnparseableTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.Set(ctx, prefKey(testUser), "{not json"))
	require.NoError(t, f.local.Set(ctx, prefKey(testUser),
		cachedBlob(t, models.PreferencePatch{DarkMode: boolPtr(true)}, testUser, 1)))

	prefs := f.reconciler.Load(ctx, testUser)
	assert.True(t, prefs.DarkMode)
}

func TestLoadIgnoresOtherUsersCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.local.Set(ctx, prefKey(testUser),
		cachedBlob(t, models.PreferencePatch{DarkMode: boolPtr(true)}, "someone-else", 1)))

	prefs := f.reconciler.Load(ctx, testUser)
	assert.False(t, prefs.DarkMode)
}

func TestRecoveryPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Only the local backup tier has anything.
	require.NoError(t, f.local.Set(ctx, backupKey(testUser),
		cachedBlob(t, models.PreferencePatch{FontSize: fontPtr(models.FontSizeLarge)}, testUser, 1)))

	prefs := f.reconciler.Load(ctx, testUser)
	assert.Equal(t, models.FontSizeLarge, prefs.FontSize)
}

func TestRecoveryFromRemoteBackup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SetBackupPreferences(ctx, testUser,
		models.PreferencePatch{SidebarExpanded: boolPtr(true)}))

	prefs := f.reconciler.Load(ctx, testUser)
	assert.True(t, prefs.SidebarExpanded)
}

func TestSetPreference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.reconciler.SetPreference(ctx, testUser, "darkMode", true)
	require.NoError(t, err)
	assert.True(t, ok)

	// The remote record was created with defaults plus the new value.
	doc, found, err := f.repo.GetPreferences(ctx, testUser)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, *doc.DarkMode)
	assert.Equal(t, models.FontSizeMedium, *doc.FontSize)

	// Both cache tiers carry the value.
	prefs := f.reconciler.Load(ctx, testUser)
	assert.True(t, prefs.DarkMode)

	_, err = f.reconciler.SetPreference(ctx, testUser, "nonsense", true)
	assert.Error(t, err)
	_, err = f.reconciler.SetPreference(ctx, testUser, "fontSize", "enormous")
	assert.Error(t, err)
}

func TestSetPreferenceAlternatePathRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.Initialize(ctx, testUser)
	require.NoError(t, err)

	// The direct update path fails; the merging alternate path succeeds.
	f.repo.failUpdate = true
	ok, err := f.reconciler.SetPreference(ctx, testUser, "fontSize", "large")
	require.NoError(t, err)
	assert.True(t, ok)

	doc, found, err := f.repo.GetPreferences(ctx, testUser)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.FontSizeLarge, *doc.FontSize)
}

func TestSetPreferenceRemoteFailureStillCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.failUpdate = true
	f.repo.failMerge = true
	f.repo.failCreate = true

	ok, err := f.reconciler.SetPreference(ctx, testUser, "darkMode", true)
	require.NoError(t, err)
	assert.False(t, ok)

	// The cache tiers were written regardless of the remote outcome.
	raw, found, err := f.local.Get(ctx, prefKey(testUser))
	require.NoError(t, err)
	require.True(t, found)
	var cached models.CachedPreferences
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.True(t, *cached.DarkMode)
}

func TestSetPreferencesMirrorsBackup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	patch := models.PreferencePatch{
		DarkMode: boolPtr(true),
		FontSize: fontPtr(models.FontSizeSmall),
	}
	ok, err := f.reconciler.SetPreferences(ctx, testUser, patch)
	require.NoError(t, err)
	assert.True(t, ok)

	backup, found, err := f.repo.GetBackup(ctx, testUser)
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, backup.Preferences)
	assert.True(t, *backup.Preferences.DarkMode)

	// The minimal local backup was written too.
	_, found, err = f.local.Get(ctx, minimalKey(testUser))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestPeriodicSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prefs := models.DefaultPreferences()
	stop := f.reconciler.PeriodicSave(testUser, func() models.Preferences { return prefs }, time.Hour)

	// The immediate save has landed.
	doc, found, err := f.repo.GetPreferences(ctx, testUser)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, *doc.DarkMode)

	// Stopping performs one final save with the latest snapshot.
	prefs.DarkMode = true
	stop()

	doc, found, err = f.repo.GetPreferences(ctx, testUser)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, *doc.DarkMode)
}

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
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/cache"
	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/repository"
)

const (
	prefKeyPrefix = "donelist_user_preferences"
	backupSuffix  = "_backup"
	minimalSuffix = "_minimal"
)

// Reconciler mirrors one user's preference set across four tiers: the
// session cache, the durable local cache, the authoritative remote record
// and a remote backup record. Every tier write is best-effort; a failing
// tier is logged and skipped, never fatal.
type Reconciler struct {
	repo    repository.PreferenceRepository
	local   cache.Cache
	session cache.Cache
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewReconciler creates a new Reconciler.
func NewReconciler(repo repository.PreferenceRepository, local, session cache.Cache, tracer trace.Tracer, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		repo:    repo,
		local:   local,
		session: session,
		logger:  logger.Named("pref_reconciler"),
		tracer:  tracer,
	}
}

func prefKey(userID string) string    { return prefKeyPrefix + ":" + userID }
func backupKey(userID string) string  { return prefKeyPrefix + backupSuffix + ":" + userID }
func minimalKey(userID string) string { return prefKeyPrefix + minimalSuffix + ":" + userID }

// Initialize ensures the authoritative record exists, creating it with full
// defaults when absent, and back-fills any missing fields. The returned set
// always has every field populated.
func (r *Reconciler) Initialize(ctx context.Context, userID string) (models.Preferences, error) {
	ctx, span := r.tracer.Start(ctx, "Reconciler.Initialize")
	defer span.End()

	prefs := models.DefaultPreferences()
	doc, ok, err := r.repo.GetPreferences(ctx, userID)
	if err != nil {
		return prefs, fmt.Errorf("failed to check preferences: %w", err)
	}
	if !ok {
		if err := r.repo.CreatePreferences(ctx, userID, models.PreferencePatch{}); err != nil {
			return prefs, fmt.Errorf("failed to initialize preferences: %w", err)
		}
		r.writeCaches(ctx, userID, prefs)
		return prefs, nil
	}

	doc.PreferencePatch.Apply(&prefs)
	if doc.PreferencePatch.Incomplete() {
		// Persist the back-filled set so the record is complete from now on.
		if !r.writeRemote(ctx, userID, models.PatchOf(prefs), true) {
			r.logger.Warn("Failed to back-fill preference defaults", zap.String("userId", userID))
		}
	}
	r.writeCaches(ctx, userID, prefs)
	return prefs, nil
}

// Load assembles the freshest complete preference set. It runs a best-effort
// recovery pass over the backup tiers, then probes session cache, local
// cache and finally the authoritative record, each found partial overriding
// what came before. Unreadable tiers are skipped. Load never fails; at worst
// it returns the defaults.
func (r *Reconciler) Load(ctx context.Context, userID string) models.Preferences {
	ctx, span := r.tracer.Start(ctx, "Reconciler.Load")
	defer span.End()

	prefs := models.DefaultPreferences()

	if recovered, ok := r.recover(ctx, userID); ok {
		recovered.Apply(&prefs)
	}

	if cached, ok := r.readCached(ctx, r.session, prefKey(userID), userID); ok {
		cached.Apply(&prefs)
	}

	if cached, ok := r.readLocal(ctx, userID); ok {
		cached.Apply(&prefs)
	}

	doc, ok, err := r.repo.GetPreferences(ctx, userID)
	switch {
	case err != nil:
		r.logger.Warn("Failed to load authoritative preferences, using cached tiers",
			zap.String("userId", userID), zap.Error(err))
	case !ok:
		if err := r.repo.CreatePreferences(ctx, userID, models.PatchOf(prefs)); err != nil {
			r.logger.Warn("Failed to create preference record on load", zap.Error(err))
		}
	default:
		doc.PreferencePatch.Apply(&prefs)
		if doc.PreferencePatch.Incomplete() {
			if !r.writeRemote(ctx, userID, models.PatchOf(prefs), true) {
				r.logger.Warn("Failed to back-fill preference defaults on load", zap.String("userId", userID))
			}
		}
	}

	r.writeCaches(ctx, userID, prefs)
	return prefs
}

// recover is the fallback net run before the ordered probe: local backup,
// minimal local backup, session cache, then the remote backup record. The
// first readable source wins.
func (r *Reconciler) recover(ctx context.Context, userID string) (models.PreferencePatch, bool) {
	if cached, ok := r.readCached(ctx, r.local, backupKey(userID), userID); ok {
		return cached, true
	}
	if cached, ok := r.readCached(ctx, r.local, minimalKey(userID), userID); ok {
		return cached, true
	}
	if cached, ok := r.readCached(ctx, r.session, prefKey(userID), userID); ok {
		return cached, true
	}
	backup, ok, err := r.repo.GetBackup(ctx, userID)
	if err != nil {
		r.logger.Warn("Failed to read remote backup during recovery", zap.Error(err))
		return models.PreferencePatch{}, false
	}
	if ok && backup.Preferences != nil {
		r.logger.Info("Recovered preferences from remote backup", zap.String("userId", userID))
		return *backup.Preferences, true
	}
	return models.PreferencePatch{}, false
}

// SetPreference writes a single field to every tier. The returned flag
// reports whether the remote write ultimately succeeded; cache tiers are
// written regardless.
func (r *Reconciler) SetPreference(ctx context.Context, userID, key string, value any) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "Reconciler.SetPreference")
	defer span.End()

	patch, err := models.PatchField(key, value)
	if err != nil {
		return false, err
	}

	remoteOK := r.writeRemote(ctx, userID, patch, false)
	r.updateCaches(ctx, userID, patch, false)
	return remoteOK, nil
}

// SetPreferences writes multiple fields in one pass: a single local blob
// rewrite, a single remote update-or-create, plus a best-effort mirror to
// the remote backup record.
func (r *Reconciler) SetPreferences(ctx context.Context, userID string, patch models.PreferencePatch) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "Reconciler.SetPreferences")
	defer span.End()

	if patch.IsZero() {
		return true, nil
	}

	remoteOK := r.writeRemote(ctx, userID, patch, false)
	if err := r.repo.SetBackupPreferences(ctx, userID, patch); err != nil {
		r.logger.Warn("Failed to mirror preferences to remote backup", zap.Error(err))
	}
	r.updateCaches(ctx, userID, patch, true)
	return remoteOK, nil
}

// writeRemote applies the patch to the authoritative record: update if it
// exists, create with defaults otherwise, retrying once through the merging
// alternate path when the direct write fails. backfill marks writes that only
// complete an existing record.
func (r *Reconciler) writeRemote(ctx context.Context, userID string, patch models.PreferencePatch, backfill bool) bool {
	_, exists, err := r.repo.GetPreferences(ctx, userID)
	if err != nil {
		r.logger.Warn("Failed to check preference record before write", zap.Error(err))
		exists = backfill
	}

	if exists {
		err = r.repo.UpdatePreferences(ctx, userID, patch)
	} else {
		err = r.repo.CreatePreferences(ctx, userID, patch)
	}
	if err == nil {
		return true
	}
	r.logger.Warn("Preference write failed, retrying via merge path",
		zap.String("userId", userID), zap.Error(err))
	if err := r.repo.MergePreferences(ctx, userID, patch); err != nil {
		r.logger.Error("Preference merge path also failed",
			zap.String("userId", userID), zap.Error(err))
		return false
	}
	return true
}

// updateCaches performs a read-modify-write of the cached blob and mirrors
// it to the session tier, plus the minimal backup when requested.
func (r *Reconciler) updateCaches(ctx context.Context, userID string, patch models.PreferencePatch, minimal bool) {
	prefs := models.DefaultPreferences()
	if cached, ok := r.readCached(ctx, r.local, prefKey(userID), userID); ok {
		cached.Apply(&prefs)
	}
	patch.Apply(&prefs)
	r.writeCaches(ctx, userID, prefs)
	if minimal {
		r.writeMinimal(ctx, userID, prefs)
	}
}

// writeCaches stores the full set under the main and backup local keys and
// mirrors it to the session tier. If the full local write fails, a minimal
// subset is attempted instead.
func (r *Reconciler) writeCaches(ctx context.Context, userID string, prefs models.Preferences) {
	blob, err := json.Marshal(models.CachedPreferences{
		PreferencePatch: models.PatchOf(prefs),
		UserID:          userID,
		Timestamp:       time.Now().UnixMilli(),
	})
	if err != nil {
		r.logger.Error("Failed to encode preferences for caching", zap.Error(err))
		return
	}
	data := string(blob)

	if err := r.local.Set(ctx, prefKey(userID), data); err != nil {
		r.logger.Warn("Failed to write local preference cache", zap.Error(err))
		r.writeMinimal(ctx, userID, prefs)
	}
	if err := r.local.Set(ctx, backupKey(userID), data); err != nil {
		r.logger.Warn("Failed to write local preference backup", zap.Error(err))
	}
	if err := r.session.Set(ctx, prefKey(userID), data); err != nil {
		r.logger.Warn("Failed to write session preference cache", zap.Error(err))
	}
}

// writeMinimal stores the critical subset under the minimal backup key.
func (r *Reconciler) writeMinimal(ctx context.Context, userID string, prefs models.Preferences) {
	blob, err := json.Marshal(models.CachedPreferences{
		PreferencePatch: models.PreferencePatch{
			DarkMode:         &prefs.DarkMode,
			FontSize:         &prefs.FontSize,
			ProfilePanelOpen: &prefs.ProfilePanelOpen,
		},
		UserID:    userID,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		r.logger.Error("Failed to encode minimal preferences", zap.Error(err))
		return
	}
	if err := r.local.Set(ctx, minimalKey(userID), string(blob)); err != nil {
		r.logger.Warn("Failed to write minimal preference backup", zap.Error(err))
	}
}

// readLocal reads the main local key, falling back to the backup key and
// restoring the main key from it when the main blob is unreadable.
func (r *Reconciler) readLocal(ctx context.Context, userID string) (models.PreferencePatch, bool) {
	raw, found, err := r.local.Get(ctx, prefKey(userID))
	if err != nil {
		r.logger.Warn("Failed to read local preference cache", zap.Error(err))
		return models.PreferencePatch{}, false
	}
	if found {
		var cached models.CachedPreferences
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil && cached.UserID == userID {
			// Refresh the session tier with the local copy.
			if err := r.session.Set(ctx, prefKey(userID), raw); err != nil {
				r.logger.Warn("Failed to refresh session preference cache", zap.Error(err))
			}
			return cached.PreferencePatch, true
		}
		r.logger.Warn("Local preference cache unreadable, trying backup key", zap.String("userId", userID))
	}

	backupRaw, found, err := r.local.Get(ctx, backupKey(userID))
	if err != nil || !found {
		return models.PreferencePatch{}, false
	}
	var cached models.CachedPreferences
	if err := json.Unmarshal([]byte(backupRaw), &cached); err != nil || cached.UserID != userID {
		return models.PreferencePatch{}, false
	}
	if err := r.local.Set(ctx, prefKey(userID), backupRaw); err != nil {
		r.logger.Warn("Failed to restore local preference cache from backup", zap.Error(err))
	}
	return cached.PreferencePatch, true
}

// readCached reads and decodes one cached blob, rejecting records written
// for a different user.
func (r *Reconciler) readCached(ctx context.Context, tier cache.Cache, key, userID string) (models.PreferencePatch, bool) {
	raw, found, err := tier.Get(ctx, key)
	if err != nil {
		r.logger.Warn("Failed to read preference cache tier", zap.String("key", key), zap.Error(err))
		return models.PreferencePatch{}, false
	}
	if !found {
		return models.PreferencePatch{}, false
	}
	var cached models.CachedPreferences
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		r.logger.Warn("Unparseable preference cache entry skipped", zap.String("key", key), zap.Error(err))
		return models.PreferencePatch{}, false
	}
	if cached.UserID != userID {
		return models.PreferencePatch{}, false
	}
	return cached.PreferencePatch, true
}

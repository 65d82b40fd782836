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
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/cache"
	"donelist.dev/donelist/internal/identity"
	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/objectstore"
	"donelist.dev/donelist/internal/repository"
)

var (
	// ErrNotImage is returned when an upload is not an image.
	ErrNotImage = errors.New("profile picture must be an image")
	// ErrTooLarge is returned when an upload exceeds the size bound.
	ErrTooLarge = errors.New("profile picture must be at most 5 MiB")
)

const (
	maxUploadBytes = 5 << 20

	picKeyPrefix     = "donelist_profile_picture"
	picSessionSuffix = "_session"

	// The identity-provider value always outranks every other tier, so its
	// candidate is stamped this far into the future.
	identityRecencyBoostMillis = 1_000_000

	identityUpdateAttempts = 3
)

// Service mirrors one picture URL per user across the identity provider, the
// remote profile and backup documents, and the local and session caches.
// Reads select the candidate with the most recent write timestamp and
// re-propagate it so the tiers converge.
type Service struct {
	identity *identity.Service
	repo     repository.PreferenceRepository
	objects  objectstore.Store
	local    cache.Cache
	session  cache.Cache
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService creates a new profile Service.
func NewService(
	ident *identity.Service,
	repo repository.PreferenceRepository,
	objects objectstore.Store,
	local, session cache.Cache,
	tracer trace.Tracer,
	logger *zap.Logger,
) *Service {
	return &Service{
		identity: ident,
		repo:     repo,
		objects:  objects,
		local:    local,
		session:  session,
		logger:   logger.Named("profile"),
		tracer:   tracer,
	}
}

func picKey(userID string) string        { return picKeyPrefix + ":" + userID }
func sessionPicKey(userID string) string { return picKeyPrefix + picSessionSuffix + ":" + userID }

// Upload validates the file, stores it, and propagates the resulting URL to
// every tier. Validation failures are rejected before any network call.
func (s *Service) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (string, error) {
	ctx, span := s.tracer.Start(ctx, "Profile.Upload")
	defer span.End()

	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotImage
	}
	if len(data) > maxUploadBytes {
		return "", ErrTooLarge
	}

	key := fmt.Sprintf("profile-pictures/%s/%d%s", userID, time.Now().UnixMilli(), path.Ext(filename))
	photoURL, err := s.objects.Upload(ctx, key, contentType, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload profile picture: %w", err)
	}

	s.propagate(ctx, userID, photoURL)
	return photoURL, nil
}

// candidate is one tier's opinion of the current picture URL.
type candidate struct {
	url       string
	source    string
	timestamp int64
}

// Resolve gathers a candidate URL from every reachable tier and returns the
// most recently written one, falling back to a generated placeholder. The
// winner is re-propagated to the tiers that disagreed.
func (s *Service) Resolve(ctx context.Context, user *models.User) string {
	ctx, span := s.tracer.Start(ctx, "Profile.Resolve")
	defer span.End()

	var candidates []candidate

	if backup, ok, err := s.repo.GetBackup(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to read backup document for picture", zap.Error(err))
	} else if ok && backup.ProfilePicture != "" {
		candidates = append(candidates, candidate{
			url:       backup.ProfilePicture,
			source:    "remoteBackup",
			timestamp: backup.UpdatedAt.UnixMilli(),
		})
	}

	if doc, ok, err := s.repo.GetProfile(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to read profile document for picture", zap.Error(err))
	} else if ok && doc.PhotoURL != "" {
		candidates = append(candidates, candidate{
			url:       doc.PhotoURL,
			source:    "remoteProfile",
			timestamp: doc.UpdatedAt.UnixMilli(),
		})
	}

	if user.PictureURL != "" {
		candidates = append(candidates, candidate{
			url:       user.PictureURL,
			source:    "identity",
			timestamp: time.Now().UnixMilli() + identityRecencyBoostMillis,
		})
	}

	if cached, ok := s.readCached(ctx, s.local, picKey(user.ID), user.ID); ok {
		candidates = append(candidates, candidate{url: cached.PhotoURL, source: "local", timestamp: cached.Timestamp})
	}
	if cached, ok := s.readCached(ctx, s.session, sessionPicKey(user.ID), user.ID); ok {
		candidates = append(candidates, candidate{url: cached.PhotoURL, source: "session", timestamp: cached.Timestamp})
	}
	// The session tier may still hold a blob under the pre-rename key.
	if cached, ok := s.readCached(ctx, s.session, picKey(user.ID), user.ID); ok {
		candidates = append(candidates, candidate{url: cached.PhotoURL, source: "legacySession", timestamp: cached.Timestamp})
	}

	if len(candidates) == 0 {
		return placeholderURL(user.DisplayName)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].timestamp > candidates[j].timestamp
	})
	winner := candidates[0]
	s.logger.Info("Resolved profile picture",
		zap.String("userId", user.ID),
		zap.String("source", winner.source),
		zap.Int("candidates", len(candidates)))

	// Self-healing: push the winner back out so every tier converges.
	s.propagate(ctx, user.ID, winner.url)
	return winner.url
}

// propagate writes the URL to every tier, each attempt independent: caches
// first, then the profile document, the identity provider, and the backup
// document.
func (s *Service) propagate(ctx context.Context, userID, photoURL string) {
	s.writeCaches(ctx, userID, photoURL)

	if err := s.repo.SetProfilePicture(ctx, userID, photoURL); err != nil {
		s.logger.Warn("Failed to write profile document", zap.String("userId", userID), zap.Error(err))
	}

	s.updateIdentity(ctx, userID, photoURL)

	if err := s.repo.SetBackupPicture(ctx, userID, photoURL); err != nil {
		s.logger.Warn("Failed to write backup document", zap.String("userId", userID), zap.Error(err))
	}
}

// updateIdentity sets the identity-provider picture field, re-reading the
// account to verify the value stuck and retrying a few times if it did not.
func (s *Service) updateIdentity(ctx context.Context, userID, photoURL string) {
	for attempt := 1; attempt <= identityUpdateAttempts; attempt++ {
		updated, err := s.identity.UpdatePicture(ctx, userID, photoURL)
		if err != nil {
			s.logger.Warn("Failed to update identity picture",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if updated.PictureURL == photoURL {
			return
		}
		s.logger.Warn("Identity picture did not reflect update, retrying",
			zap.String("userId", userID), zap.Int("attempt", attempt))
	}
	s.logger.Error("Identity picture update failed after retries", zap.String("userId", userID))
}

func (s *Service) writeCaches(ctx context.Context, userID, photoURL string) {
	blob, err := json.Marshal(models.CachedPicture{
		PhotoURL:  photoURL,
		UserID:    userID,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		s.logger.Error("Failed to encode picture for caching", zap.Error(err))
		return
	}
	data := string(blob)
	if err := s.local.Set(ctx, picKey(userID), data); err != nil {
		s.logger.Warn("Failed to write local picture cache", zap.Error(err))
	}
	if err := s.session.Set(ctx, sessionPicKey(userID), data); err != nil {
		s.logger.Warn("Failed to write session picture cache", zap.Error(err))
	}
	// Keep the legacy session key in step.
	if err := s.session.Set(ctx, picKey(userID), data); err != nil {
		s.logger.Warn("Failed to write legacy session picture key", zap.Error(err))
	}
}

func (s *Service) readCached(ctx context.Context, tier cache.Cache, key, userID string) (models.CachedPicture, bool) {
	raw, found, err := tier.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to read picture cache tier", zap.String("key", key), zap.Error(err))
		return models.CachedPicture{}, false
	}
	if !found {
		return models.CachedPicture{}, false
	}
	var cached models.CachedPicture
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		s.logger.Warn("Unparseable picture cache entry skipped", zap.String("key", key), zap.Error(err))
		return models.CachedPicture{}, false
	}
	if cached.UserID != userID || cached.PhotoURL == "" {
		return models.CachedPicture{}, false
	}
	return cached, true
}

// placeholderURL synthesizes an avatar from the display name when no tier
// has a picture.
func placeholderURL(displayName string) string {
	if displayName == "" {
		displayName = "User"
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(displayName) + "&background=random"
}

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

package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
)

// InMemoryPreferenceRepository is an in-memory implementation of the
// PreferenceRepository, used for local development and tests.
type InMemoryPreferenceRepository struct {
	mu       sync.RWMutex
	prefs    map[string]models.PreferenceDoc
	profiles map[string]models.ProfileDoc
	backups  map[string]models.BackupDoc
	logger   *zap.Logger
}

// NewInMemoryPreferenceRepository creates a new InMemoryPreferenceRepository.
func NewInMemoryPreferenceRepository(logger *zap.Logger) *InMemoryPreferenceRepository {
	return &InMemoryPreferenceRepository{
		prefs:    make(map[string]models.PreferenceDoc),
		profiles: make(map[string]models.ProfileDoc),
		backups:  make(map[string]models.BackupDoc),
		logger:   logger.Named("inmemory_pref_repo"),
	}
}

func (r *InMemoryPreferenceRepository) GetPreferences(ctx context.Context, userID string) (models.PreferenceDoc, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.prefs[userID]
	return doc, ok, nil
}

func (r *InMemoryPreferenceRepository) CreatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defaults := models.DefaultPreferences()
	patch.Apply(&defaults)
	now := time.Now()
	r.prefs[userID] = models.PreferenceDoc{
		PreferencePatch: models.PatchOf(defaults),
		UserID:          userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return nil
}

func (r *InMemoryPreferenceRepository) UpdatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.prefs[userID]
	if !ok {
		return fmt.Errorf("preference document for user %s does not exist", userID)
	}
	mergePatch(&doc.PreferencePatch, patch)
	doc.UpdatedAt = time.Now()
	r.prefs[userID] = doc
	return nil
}

func (r *InMemoryPreferenceRepository) MergePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.prefs[userID]
	doc.UserID = userID
	mergePatch(&doc.PreferencePatch, patch)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.UpdatedAt = time.Now()
	r.prefs[userID] = doc
	return nil
}

func (r *InMemoryPreferenceRepository) GetBackup(ctx context.Context, userID string) (models.BackupDoc, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.backups[userID]
	return doc, ok, nil
}

func (r *InMemoryPreferenceRepository) SetBackupPreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.backups[userID]
	doc.Preferences = &patch
	doc.BackupTimestamp = time.Now().Format(time.RFC3339)
	doc.UpdatedAt = time.Now()
	r.backups[userID] = doc
	return nil
}

func (r *InMemoryPreferenceRepository) GetProfile(ctx context.Context, userID string) (models.ProfileDoc, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.profiles[userID]
	return doc, ok, nil
}

func (r *InMemoryPreferenceRepository) SetProfilePicture(ctx context.Context, userID, photoURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[userID] = models.ProfileDoc{
		UserID:      userID,
		PhotoURL:    photoURL,
		UpdatedAt:   time.Now(),
		LastUpdated: time.Now().Format(time.RFC3339),
	}
	return nil
}

func (r *InMemoryPreferenceRepository) SetBackupPicture(ctx context.Context, userID, photoURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.backups[userID]
	doc.ProfilePicture = photoURL
	doc.UpdatedAt = time.Now()
	r.backups[userID] = doc
	return nil
}

func (r *InMemoryPreferenceRepository) Close() error {
	return nil
}

// mergePatch copies the present fields of src over dst.
func mergePatch(dst *models.PreferencePatch, src models.PreferencePatch) {
	if src.DarkMode != nil {
		dst.DarkMode = src.DarkMode
	}
	if src.FontSize != nil {
		dst.FontSize = src.FontSize
	}
	if src.AutoSortTasks != nil {
		dst.AutoSortTasks = src.AutoSortTasks
	}
	if src.DueDateReminders != nil {
		dst.DueDateReminders = src.DueDateReminders
	}
	if src.ReminderTime != nil {
		dst.ReminderTime = src.ReminderTime
	}
	if src.SidebarExpanded != nil {
		dst.SidebarExpanded = src.SidebarExpanded
	}
	if src.ProfilePanelOpen != nil {
		dst.ProfilePanelOpen = src.ProfilePanelOpen
	}
}

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
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"donelist.dev/donelist/internal/models"
)

const (
	prefCollection    = "userPreferences"
	profileCollection = "userProfiles"
	backupCollection  = "userBackups"
)

// FirestorePreferenceRepository is a Firestore implementation of the
// PreferenceRepository.
type FirestorePreferenceRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestorePreferenceRepository creates a new FirestorePreferenceRepository.
func NewFirestorePreferenceRepository(ctx context.Context, projectID string, logger *zap.Logger) (*FirestorePreferenceRepository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestorePreferenceRepository{
		client: client,
		logger: logger.Named("firestore_pref_repo"),
	}, nil
}

func (r *FirestorePreferenceRepository) GetPreferences(ctx context.Context, userID string) (models.PreferenceDoc, bool, error) {
	doc, err := r.client.Collection(prefCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.PreferenceDoc{}, false, nil
		}
		return models.PreferenceDoc{}, false, fmt.Errorf("failed to get preferences: %w", err)
	}
	var prefs models.PreferenceDoc
	if err := doc.DataTo(&prefs); err != nil {
		return models.PreferenceDoc{}, false, fmt.Errorf("failed to decode preference data: %w", err)
	}
	return prefs, true, nil
}

func (r *FirestorePreferenceRepository) CreatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	defaults := models.DefaultPreferences()
	patch.Apply(&defaults)
	doc := models.PreferenceDoc{
		PreferencePatch: models.PatchOf(defaults),
		UserID:          userID,
	}
	if _, err := r.client.Collection(prefCollection).Doc(userID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to create preferences: %w", err)
	}
	r.logger.Info("Created preference document in Firestore", zap.String("userId", userID))
	return nil
}

func (r *FirestorePreferenceRepository) UpdatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	updates := patchUpdates(patch)
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})
	if _, err := r.client.Collection(prefCollection).Doc(userID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return nil
}

func (r *FirestorePreferenceRepository) MergePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	fields := patchFields(patch)
	fields["userId"] = userID
	fields["updatedAt"] = firestore.ServerTimestamp
	if _, err := r.client.Collection(prefCollection).Doc(userID).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to merge preferences: %w", err)
	}
	return nil
}

func (r *FirestorePreferenceRepository) GetBackup(ctx context.Context, userID string) (models.BackupDoc, bool, error) {
	doc, err := r.client.Collection(backupCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.BackupDoc{}, false, nil
		}
		return models.BackupDoc{}, false, fmt.Errorf("failed to get backup: %w", err)
	}
	var backup models.BackupDoc
	if err := doc.DataTo(&backup); err != nil {
		return models.BackupDoc{}, false, fmt.Errorf("failed to decode backup data: %w", err)
	}
	return backup, true, nil
}

func (r *FirestorePreferenceRepository) SetBackupPreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	_, err := r.client.Collection(backupCollection).Doc(userID).Set(ctx, map[string]any{
		"preferences":     patch,
		"backupTimestamp": time.Now().Format(time.RFC3339),
		"updatedAt":       firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set backup preferences: %w", err)
	}
	return nil
}

func (r *FirestorePreferenceRepository) GetProfile(ctx context.Context, userID string) (models.ProfileDoc, bool, error) {
	doc, err := r.client.Collection(profileCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.ProfileDoc{}, false, nil
		}
		return models.ProfileDoc{}, false, fmt.Errorf("failed to get profile: %w", err)
	}
	var profile models.ProfileDoc
	if err := doc.DataTo(&profile); err != nil {
		return models.ProfileDoc{}, false, fmt.Errorf("failed to decode profile data: %w", err)
	}
	return profile, true, nil
}

func (r *FirestorePreferenceRepository) SetProfilePicture(ctx context.Context, userID, photoURL string) error {
	_, err := r.client.Collection(profileCollection).Doc(userID).Set(ctx, map[string]any{
		"userId":      userID,
		"photoURL":    photoURL,
		"updatedAt":   firestore.ServerTimestamp,
		"lastUpdated": time.Now().Format(time.RFC3339),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set profile picture: %w", err)
	}
	return nil
}

func (r *FirestorePreferenceRepository) SetBackupPicture(ctx context.Context, userID, photoURL string) error {
	_, err := r.client.Collection(backupCollection).Doc(userID).Set(ctx, map[string]any{
		"profilePicture": photoURL,
		"updatedAt":      firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set backup picture: %w", err)
	}
	return nil
}

func (r *FirestorePreferenceRepository) Close() error {
	return r.client.Close()
}

// patchUpdates converts the present fields of a patch into field updates.
func patchUpdates(patch models.PreferencePatch) []firestore.Update {
	var updates []firestore.Update
	for path, value := range patchFields(patch) {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	return updates
}

// patchFields maps the present fields of a patch to their document paths.
func patchFields(patch models.PreferencePatch) map[string]any {
	fields := make(map[string]any)
	if patch.DarkMode != nil {
		fields["darkMode"] = *patch.DarkMode
	}
	if patch.FontSize != nil {
		fields["fontSize"] = *patch.FontSize
	}
	if patch.AutoSortTasks != nil {
		fields["autoSortTasks"] = *patch.AutoSortTasks
	}
	if patch.DueDateReminders != nil {
		fields["dueDateReminders"] = *patch.DueDateReminders
	}
	if patch.ReminderTime != nil {
		fields["reminderTime"] = *patch.ReminderTime
	}
	if patch.SidebarExpanded != nil {
		fields["sidebarExpanded"] = *patch.SidebarExpanded
	}
	if patch.ProfilePanelOpen != nil {
		fields["profilePanelOpen"] = *patch.ProfilePanelOpen
	}
	return fields
}

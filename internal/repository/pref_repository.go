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

	"donelist.dev/donelist/internal/models"
)

// PreferenceRepository holds the remote preference, profile and backup
// documents, one of each per user. The preference document is the
// authoritative tier; the backup document is a best-effort mirror consulted
// only by the recovery pass.
type PreferenceRepository interface {
	// GetPreferences returns the authoritative record, reporting absence
	// without error.
	GetPreferences(ctx context.Context, userID string) (models.PreferenceDoc, bool, error)

	// CreatePreferences writes a fresh record containing the full default
	// set overlaid with the given patch.
	CreatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error

	// UpdatePreferences applies the patch's present fields to an existing
	// record. It fails if the record does not exist.
	UpdatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error

	// MergePreferences is the alternate write path: a merging set that
	// succeeds whether or not the record exists.
	MergePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error

	GetBackup(ctx context.Context, userID string) (models.BackupDoc, bool, error)
	SetBackupPreferences(ctx context.Context, userID string, patch models.PreferencePatch) error

	GetProfile(ctx context.Context, userID string) (models.ProfileDoc, bool, error)
	SetProfilePicture(ctx context.Context, userID, photoURL string) error
	SetBackupPicture(ctx context.Context, userID, photoURL string) error

	Close() error
}

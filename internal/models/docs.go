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

package models

import "time"

// Remote document shapes. Documents are keyed by user id in their
// respective collections; timestamps are server-assigned where the backing
// store supports a server clock sentinel.

// PreferenceDoc is the authoritative preference record.
type PreferenceDoc struct {
	PreferencePatch `bson:",inline"`
	UserID          string    `firestore:"userId" bson:"userId" json:"userId"`
	CreatedAt       time.Time `firestore:"createdAt,serverTimestamp" bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt,serverTimestamp" bson:"updatedAt" json:"updatedAt"`
}

// ProfileDoc is the remote profile-picture record.
type ProfileDoc struct {
	UserID      string    `firestore:"userId" bson:"userId" json:"userId"`
	PhotoURL    string    `firestore:"photoURL" bson:"photoURL" json:"photoURL"`
	UpdatedAt   time.Time `firestore:"updatedAt,serverTimestamp" bson:"updatedAt" json:"updatedAt"`
	LastUpdated string    `firestore:"lastUpdated" bson:"lastUpdated" json:"lastUpdated"`
}

// BackupDoc is the redundant per-user backup record holding best-effort
// mirrors of the preference set and the profile picture.
type BackupDoc struct {
	Preferences     *PreferencePatch `firestore:"preferences,omitempty" bson:"preferences,omitempty" json:"preferences,omitempty"`
	ProfilePicture  string           `firestore:"profilePicture,omitempty" bson:"profilePicture,omitempty" json:"profilePicture,omitempty"`
	BackupTimestamp string           `firestore:"backupTimestamp,omitempty" bson:"backupTimestamp,omitempty" json:"backupTimestamp,omitempty"`
	UpdatedAt       time.Time        `firestore:"updatedAt,serverTimestamp" bson:"updatedAt" json:"updatedAt"`
}

// CachedPicture is the blob written to the local and session cache tiers for
// the profile picture, timestamped in unix milliseconds.
type CachedPicture struct {
	PhotoURL  string `json:"photoURL"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

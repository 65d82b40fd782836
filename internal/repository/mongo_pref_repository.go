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
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
)

// MongoPreferenceRepository is a MongoDB implementation of the
// PreferenceRepository. Documents are keyed by user id.
type MongoPreferenceRepository struct {
	prefs    *mongo.Collection
	profiles *mongo.Collection
	backups  *mongo.Collection
	logger   *zap.Logger
}

// NewMongoPreferenceRepository creates a new MongoPreferenceRepository on an
// existing client.
func NewMongoPreferenceRepository(db *mongo.Database, logger *zap.Logger) *MongoPreferenceRepository {
	return &MongoPreferenceRepository{
		prefs:    db.Collection(prefCollection),
		profiles: db.Collection(profileCollection),
		backups:  db.Collection(backupCollection),
		logger:   logger.Named("mongo_pref_repo"),
	}
}

func (r *MongoPreferenceRepository) GetPreferences(ctx context.Context, userID string) (models.PreferenceDoc, bool, error) {
	var doc models.PreferenceDoc
	err := r.prefs.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.PreferenceDoc{}, false, nil
		}
		return models.PreferenceDoc{}, false, fmt.Errorf("failed to get preferences: %w", err)
	}
	return doc, true, nil
}

func (r *MongoPreferenceRepository) CreatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	defaults := models.DefaultPreferences()
	patch.Apply(&defaults)
	now := time.Now()
	doc := bson.M{
		"_id":       userID,
		"userId":    userID,
		"createdAt": now,
		"updatedAt": now,
	}
	for path, value := range patchFieldsBSON(models.PatchOf(defaults)) {
		doc[path] = value
	}
	if _, err := r.prefs.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create preferences: %w", err)
	}
	r.logger.Info("Created preference document in MongoDB", zap.String("userId", userID))
	return nil
}

func (r *MongoPreferenceRepository) UpdatePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	set := patchFieldsBSON(patch)
	set["updatedAt"] = time.Now()
	res, err := r.prefs.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("preference document for user %s does not exist", userID)
	}
	return nil
}

func (r *MongoPreferenceRepository) MergePreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	set := patchFieldsBSON(patch)
	set["userId"] = userID
	set["updatedAt"] = time.Now()
	opts := upsert()
	if _, err := r.prefs.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts); err != nil {
		return fmt.Errorf("failed to merge preferences: %w", err)
	}
	return nil
}

func (r *MongoPreferenceRepository) GetBackup(ctx context.Context, userID string) (models.BackupDoc, bool, error) {
	var doc models.BackupDoc
	err := r.backups.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.BackupDoc{}, false, nil
		}
		return models.BackupDoc{}, false, fmt.Errorf("failed to get backup: %w", err)
	}
	return doc, true, nil
}

func (r *MongoPreferenceRepository) SetBackupPreferences(ctx context.Context, userID string, patch models.PreferencePatch) error {
	set := bson.M{
		"preferences":     patch,
		"backupTimestamp": time.Now().Format(time.RFC3339),
		"updatedAt":       time.Now(),
	}
	if _, err := r.backups.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, upsert()); err != nil {
		return fmt.Errorf("failed to set backup preferences: %w", err)
	}
	return nil
}

func (r *MongoPreferenceRepository) GetProfile(ctx context.Context, userID string) (models.ProfileDoc, bool, error) {
	var doc models.ProfileDoc
	err := r.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ProfileDoc{}, false, nil
		}
		return models.ProfileDoc{}, false, fmt.Errorf("failed to get profile: %w", err)
	}
	return doc, true, nil
}

func (r *MongoPreferenceRepository) SetProfilePicture(ctx context.Context, userID, photoURL string) error {
	set := bson.M{
		"userId":      userID,
		"photoURL":    photoURL,
		"updatedAt":   time.Now(),
		"lastUpdated": time.Now().Format(time.RFC3339),
	}
	if _, err := r.profiles.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, upsert()); err != nil {
		return fmt.Errorf("failed to set profile picture: %w", err)
	}
	return nil
}

func (r *MongoPreferenceRepository) SetBackupPicture(ctx context.Context, userID, photoURL string) error {
	set := bson.M{
		"profilePicture": photoURL,
		"updatedAt":      time.Now(),
	}
	if _, err := r.backups.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, upsert()); err != nil {
		return fmt.Errorf("failed to set backup picture: %w", err)
	}
	return nil
}

func (r *MongoPreferenceRepository) Close() error {
	// The shared mongo client is owned and closed by the app.
	return nil
}

func upsert() *options.UpdateOptions {
	return options.Update().SetUpsert(true)
}

func patchFieldsBSON(patch models.PreferencePatch) bson.M {
	fields := bson.M{}
	for path, value := range patchFields(patch) {
		fields[path] = value
	}
	return fields
}

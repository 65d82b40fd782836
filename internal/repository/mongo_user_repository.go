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

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
)

// MongoUserRepository is a MongoDB implementation of the UserRepository.
type MongoUserRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewMongoUserRepository creates a new MongoUserRepository on an existing client.
func NewMongoUserRepository(db *mongo.Database, logger *zap.Logger) *MongoUserRepository {
	return &MongoUserRepository{
		coll:   db.Collection(userCollection),
		logger: logger.Named("mongo_user_repo"),
	}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) (string, error) {
	insert := *user
	insert.ID = uuid.NewString()
	insert.CreatedAt = time.Now()
	insert.LastUpdated = insert.CreatedAt
	if _, err := r.coll.InsertOne(ctx, insert); err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	r.logger.Info("Created user in MongoDB", zap.String("userId", insert.ID))
	return insert.ID, nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return &user, nil
}

func (r *MongoUserRepository) Update(ctx context.Context, user *models.User) error {
	user.LastUpdated = time.Now()
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) Close() error {
	// The shared mongo client is owned and closed by the app.
	return nil
}

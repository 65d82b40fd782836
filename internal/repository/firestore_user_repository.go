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
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"donelist.dev/donelist/internal/models"
)

const userCollection = "users"

// FirestoreUserRepository is a Firestore implementation of the UserRepository.
type FirestoreUserRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreUserRepository creates a new FirestoreUserRepository.
func NewFirestoreUserRepository(ctx context.Context, projectID string, logger *zap.Logger) (*FirestoreUserRepository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreUserRepository{
		client: client,
		logger: logger.Named("firestore_user_repo"),
	}, nil
}

func (r *FirestoreUserRepository) Create(ctx context.Context, user *models.User) (string, error) {
	user.CreatedAt = time.Now()
	user.LastUpdated = user.CreatedAt
	ref, _, err := r.client.Collection(userCollection).Add(ctx, user)
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	r.logger.Info("Created user in Firestore", zap.String("userId", ref.ID))
	return ref.ID, nil
}

func (r *FirestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	doc, err := r.client.Collection(userCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data: %w", err)
	}
	user.ID = doc.Ref.ID
	return &user, nil
}

func (r *FirestoreUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	iter := r.client.Collection(userCollection).Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()
	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data: %w", err)
	}
	user.ID = doc.Ref.ID
	return &user, nil
}

func (r *FirestoreUserRepository) Update(ctx context.Context, user *models.User) error {
	user.LastUpdated = time.Now()
	if _, err := r.client.Collection(userCollection).Doc(user.ID).Set(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *FirestoreUserRepository) Close() error {
	return r.client.Close()
}

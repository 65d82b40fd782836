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

	"github.com/google/uuid"

	"donelist.dev/donelist/internal/models"
)

// InMemoryUserRepository is an in-memory implementation of the UserRepository.
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewInMemoryUserRepository creates a new InMemoryUserRepository.
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[string]models.User)}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *models.User) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	insert := *user
	insert.ID = uuid.NewString()
	insert.CreatedAt = time.Now()
	insert.LastUpdated = insert.CreatedAt
	r.users[insert.ID] = insert
	return insert.ID, nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.users[userID]; ok {
		return &user, nil
	}
	return nil, nil
}

func (r *InMemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user %s not found", user.ID)
	}
	user.LastUpdated = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *InMemoryUserRepository) Close() error {
	return nil
}

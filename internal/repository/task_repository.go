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

// TaskRepository is the remote authoritative task collection.
type TaskRepository interface {
	// Watch establishes a standing query for the user's tasks and returns a
	// channel of full-list snapshots: every remote change redelivers the
	// entire current set, ordered by category then due date (undated last).
	// The first snapshot reflects the current state. The channel is closed
	// when ctx is cancelled.
	Watch(ctx context.Context, userID string) (<-chan []models.Task, error)

	// Add inserts a task with a store-assigned id and creation time, and
	// returns the assigned id.
	Add(ctx context.Context, task *models.Task) (string, error)

	// SetCompleted updates only the completion flag.
	SetCompleted(ctx context.Context, userID, taskID string, completed bool) error

	// Update rewrites the task's text, category and due date.
	Update(ctx context.Context, task *models.Task) error

	Delete(ctx context.Context, userID, taskID string) error

	// DeleteBatch removes the given tasks in a single remote operation.
	DeleteBatch(ctx context.Context, userID string, taskIDs []string) error

	// ListByUser fetches the user's full task set once, in snapshot order.
	ListByUser(ctx context.Context, userID string) ([]models.Task, error)

	Close() error
}

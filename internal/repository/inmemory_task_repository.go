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
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
)

// InMemoryTaskRepository is an in-memory implementation of the TaskRepository.
type InMemoryTaskRepository struct {
	mu      sync.Mutex
	tasks   map[string]models.Task
	subs    map[int]taskSub
	nextSub int
	logger  *zap.Logger
}

type taskSub struct {
	userID string
	ch     chan []models.Task
	ctx    context.Context
}

// NewInMemoryTaskRepository creates a new InMemoryTaskRepository.
func NewInMemoryTaskRepository(logger *zap.Logger) *InMemoryTaskRepository {
	return &InMemoryTaskRepository{
		tasks:  make(map[string]models.Task),
		subs:   make(map[int]taskSub),
		logger: logger.Named("inmemory_task_repo"),
	}
}

func (r *InMemoryTaskRepository) Watch(ctx context.Context, userID string) (<-chan []models.Task, error) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	sub := taskSub{userID: userID, ch: make(chan []models.Task, 16), ctx: ctx}
	r.subs[id] = sub
	initial := r.snapshotLocked(userID)
	r.mu.Unlock()

	sub.ch <- initial

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
		close(sub.ch)
	}()
	return sub.ch, nil
}

func (r *InMemoryTaskRepository) Add(ctx context.Context, task *models.Task) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	insert := *task
	insert.ID = uuid.NewString()
	insert.CreatedAt = time.Now()
	r.tasks[insert.ID] = insert
	r.broadcastLocked(task.UserID)
	return insert.ID, nil
}

func (r *InMemoryTaskRepository) SetCompleted(ctx context.Context, userID, taskID string, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok || task.UserID != userID {
		return fmt.Errorf("task %s not found", taskID)
	}
	task.Completed = completed
	r.tasks[taskID] = task
	r.broadcastLocked(userID)
	return nil
}

func (r *InMemoryTaskRepository) Update(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return fmt.Errorf("task %s not found", task.ID)
	}
	existing.Text = task.Text
	existing.Category = task.Category
	existing.DueDate = task.DueDate
	r.tasks[task.ID] = existing
	r.broadcastLocked(task.UserID)
	return nil
}

func (r *InMemoryTaskRepository) Delete(ctx context.Context, userID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[taskID]; ok && task.UserID == userID {
		delete(r.tasks, taskID)
		r.broadcastLocked(userID)
	}
	return nil
}

func (r *InMemoryTaskRepository) DeleteBatch(ctx context.Context, userID string, taskIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range taskIDs {
		if task, ok := r.tasks[id]; ok && task.UserID == userID {
			delete(r.tasks, id)
		}
	}
	r.broadcastLocked(userID)
	return nil
}

func (r *InMemoryTaskRepository) ListByUser(ctx context.Context, userID string) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(userID), nil
}

func (r *InMemoryTaskRepository) Close() error {
	return nil
}

func (r *InMemoryTaskRepository) snapshotLocked(userID string) []models.Task {
	tasks := make([]models.Task, 0)
	for _, task := range r.tasks {
		if task.UserID == userID {
			tasks = append(tasks, task)
		}
	}
	models.SortTasks(tasks)
	return tasks
}

func (r *InMemoryTaskRepository) broadcastLocked(userID string) {
	snapshot := r.snapshotLocked(userID)
	for _, sub := range r.subs {
		if sub.userID != userID {
			continue
		}
		select {
		case sub.ch <- snapshot:
		case <-sub.ctx.Done():
		default:
			r.logger.Warn("Dropping task snapshot for slow subscriber", zap.String("userId", userID))
		}
	}
}

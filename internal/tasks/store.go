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

package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/repository"
)

var (
	// ErrEmptyTask is returned when task text is empty or whitespace.
	ErrEmptyTask = errors.New("task text must not be empty")
	// ErrInvalidCategory is returned for an unknown category.
	ErrInvalidCategory = errors.New("invalid task category")
	// ErrTaskNotFound is returned when a task id is not in the store.
	ErrTaskNotFound = errors.New("task not found")
)

// Store keeps one user's task list in memory, synchronized with the remote
// collection through a live snapshot subscription. Mutations are applied
// optimistically and rolled back when the remote write fails; an arriving
// snapshot wholly replaces local state.
type Store struct {
	repo   repository.TaskRepository
	logger *zap.Logger
	userID string

	mu    sync.Mutex
	tasks []models.Task
	// pendingDeletes holds ids deleted locally whose removal the remote
	// snapshot has not confirmed yet. Snapshots racing in ahead of the
	// delete are filtered so the deleted item does not reappear.
	pendingDeletes map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore creates a Store for the given user. Call Subscribe to start
// receiving snapshots and Close to stop.
func NewStore(repo repository.TaskRepository, userID string, logger *zap.Logger) *Store {
	return &Store{
		repo:           repo,
		logger:         logger.Named("task_store"),
		userID:         userID,
		pendingDeletes: make(map[string]struct{}),
		done:           make(chan struct{}),
	}
}

// Subscribe opens the live query against the remote collection and starts
// applying snapshots. It does not block; snapshots arrive asynchronously.
func (s *Store) Subscribe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	snapshots, err := s.repo.Watch(ctx, s.userID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to tasks: %w", err)
	}
	s.cancel = cancel

	go func() {
		defer close(s.done)
		for snapshot := range snapshots {
			s.apply(snapshot)
		}
	}()
	return nil
}

// Close stops snapshot delivery and waits for the apply loop to exit.
func (s *Store) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// apply replaces the in-memory list with an authoritative snapshot.
func (s *Store) apply(snapshot []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]struct{}, len(snapshot))
	for _, t := range snapshot {
		present[t.ID] = struct{}{}
	}
	for id := range s.pendingDeletes {
		if _, ok := present[id]; !ok {
			delete(s.pendingDeletes, id)
		}
	}

	tasks := snapshot[:0:0]
	for _, t := range snapshot {
		if _, deleted := s.pendingDeletes[t.ID]; deleted {
			continue
		}
		tasks = append(tasks, t)
	}
	s.tasks = tasks
}

// Add inserts a provisional task at the head of the list and issues the
// remote insert. On failure the provisional entry is removed again.
func (s *Store) Add(ctx context.Context, text string, category models.Category, dueDate *time.Time) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyTask
	}
	if !category.IsValid() {
		return ErrInvalidCategory
	}

	provisional := models.Task{
		ID:        models.NewProvisionalID(),
		UserID:    s.userID,
		Text:      text,
		Category:  category,
		DueDate:   dueDate,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.tasks = append([]models.Task{provisional}, s.tasks...)
	s.mu.Unlock()

	insert := provisional
	insert.ID = ""
	if _, err := s.repo.Add(ctx, &insert); err != nil {
		s.removeByID(provisional.ID)
		s.logger.Error("Failed to add task, provisional entry removed",
			zap.String("userId", s.userID), zap.Error(err))
		return fmt.Errorf("failed to add task: %w", err)
	}
	// The provisional entry stays until the next snapshot carries the
	// record under its real id.
	return nil
}

// Toggle flips a task's completion flag and issues the remote update,
// flipping it back on failure.
func (s *Store) Toggle(ctx context.Context, taskID string) error {
	s.mu.Lock()
	idx := s.indexLocked(taskID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	completed := !s.tasks[idx].Completed
	s.tasks[idx].Completed = completed
	s.mu.Unlock()

	if err := s.repo.SetCompleted(ctx, s.userID, taskID, completed); err != nil {
		s.mu.Lock()
		if idx := s.indexLocked(taskID); idx >= 0 {
			s.tasks[idx].Completed = !completed
		}
		s.mu.Unlock()
		s.logger.Error("Failed to toggle task, completion flag restored",
			zap.String("taskID", taskID), zap.Error(err))
		return fmt.Errorf("failed to toggle task: %w", err)
	}
	return nil
}

// Edit applies the full field set to a task and issues the remote update,
// restoring the prior record on failure.
func (s *Store) Edit(ctx context.Context, taskID, text string, category models.Category, dueDate *time.Time) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyTask
	}
	if !category.IsValid() {
		return ErrInvalidCategory
	}

	s.mu.Lock()
	idx := s.indexLocked(taskID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	prior := s.tasks[idx]
	s.tasks[idx].Text = text
	s.tasks[idx].Category = category
	s.tasks[idx].DueDate = dueDate
	updated := s.tasks[idx]
	s.mu.Unlock()

	if err := s.repo.Update(ctx, &updated); err != nil {
		s.mu.Lock()
		if idx := s.indexLocked(taskID); idx >= 0 {
			s.tasks[idx] = prior
		}
		s.mu.Unlock()
		s.logger.Error("Failed to edit task, prior record restored",
			zap.String("taskID", taskID), zap.Error(err))
		return fmt.Errorf("failed to edit task: %w", err)
	}
	return nil
}

// Delete removes a task from the list and issues the remote delete,
// re-inserting the record on failure.
func (s *Store) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	idx := s.indexLocked(taskID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	removed := s.tasks[idx]
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.pendingDeletes[taskID] = struct{}{}
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, s.userID, taskID); err != nil {
		s.mu.Lock()
		delete(s.pendingDeletes, taskID)
		if s.indexLocked(taskID) < 0 {
			s.tasks = append(s.tasks, removed)
		}
		s.mu.Unlock()
		s.logger.Error("Failed to delete task, record re-inserted",
			zap.String("taskID", taskID), zap.Error(err))
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// DeleteCompleted removes every completed task and issues one remote batch
// delete. On failure it re-fetches the remote set once instead of rolling
// back per item.
func (s *Store) DeleteCompleted(ctx context.Context) error {
	s.mu.Lock()
	var ids []string
	remaining := s.tasks[:0:0]
	for _, t := range s.tasks {
		if t.Completed {
			ids = append(ids, t.ID)
			s.pendingDeletes[t.ID] = struct{}{}
		} else {
			remaining = append(remaining, t)
		}
	}
	s.tasks = remaining
	s.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	if err := s.repo.DeleteBatch(ctx, s.userID, ids); err != nil {
		s.logger.Error("Failed to batch delete completed tasks, resynchronizing",
			zap.String("userId", s.userID), zap.Error(err))
		fresh, listErr := s.repo.ListByUser(ctx, s.userID)
		if listErr != nil {
			s.logger.Error("Failed to resynchronize after batch delete failure", zap.Error(listErr))
			return fmt.Errorf("failed to batch delete tasks: %w", err)
		}
		s.mu.Lock()
		for _, id := range ids {
			delete(s.pendingDeletes, id)
		}
		s.tasks = fresh
		s.mu.Unlock()
		return fmt.Errorf("failed to batch delete tasks: %w", err)
	}
	return nil
}

// Tasks returns a copy of the current list in its stored order.
func (s *Store) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Group is one category's tasks, ordered by due date ascending with undated
// tasks last.
type Group struct {
	Category models.Category `json:"category"`
	Tasks    []models.Task   `json:"tasks"`
}

// Grouped filters the list to one category ("" or "all" keeps everything)
// and groups it by category in the fixed category order.
func (s *Store) Grouped(filter string) []Group {
	tasks := s.Tasks()
	models.SortTasks(tasks)

	byCategory := make(map[models.Category][]models.Task)
	for _, t := range tasks {
		if filter != "" && filter != "all" && string(t.Category) != filter {
			continue
		}
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	var groups []Group
	for _, c := range models.Categories {
		if members, ok := byCategory[c]; ok {
			groups = append(groups, Group{Category: c, Tasks: members})
		}
	}
	return groups
}

func (s *Store) indexLocked(taskID string) int {
	for i, t := range s.tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

func (s *Store) removeByID(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(taskID); idx >= 0 {
		s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	}
}

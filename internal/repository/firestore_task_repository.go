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

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"donelist.dev/donelist/internal/models"
)

const taskCollection = "todos"

// FirestoreTaskRepository is a Firestore implementation of the TaskRepository.
type FirestoreTaskRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreTaskRepository creates a new FirestoreTaskRepository.
func NewFirestoreTaskRepository(ctx context.Context, projectID string, logger *zap.Logger) (*FirestoreTaskRepository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreTaskRepository{
		client: client,
		logger: logger.Named("firestore_task_repo"),
	}, nil
}

func (r *FirestoreTaskRepository) Watch(ctx context.Context, userID string) (<-chan []models.Task, error) {
	query := r.client.Collection(taskCollection).Where("userId", "==", userID)
	snapshots := query.Snapshots(ctx)

	out := make(chan []models.Task)
	go func() {
		defer close(out)
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
					return
				}
				r.logger.Error("Task snapshot stream failed", zap.String("userId", userID), zap.Error(err))
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				r.logger.Error("Failed to read snapshot documents", zap.String("userId", userID), zap.Error(err))
				continue
			}
			tasks := make([]models.Task, 0, len(docs))
			for _, doc := range docs {
				var task models.Task
				if err := doc.DataTo(&task); err != nil {
					r.logger.Error("Failed to decode task document", zap.String("docID", doc.Ref.ID), zap.Error(err))
					continue
				}
				task.ID = doc.Ref.ID
				tasks = append(tasks, task)
			}
			models.SortTasks(tasks)
			select {
			case out <- tasks:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *FirestoreTaskRepository) Add(ctx context.Context, task *models.Task) (string, error) {
	ref, _, err := r.client.Collection(taskCollection).Add(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to add task: %w", err)
	}
	r.logger.Info("Created task in Firestore", zap.String("taskID", ref.ID), zap.String("userId", task.UserID))
	return ref.ID, nil
}

func (r *FirestoreTaskRepository) SetCompleted(ctx context.Context, _ string, taskID string, completed bool) error {
	_, err := r.client.Collection(taskCollection).Doc(taskID).Update(ctx, []firestore.Update{
		{Path: "completed", Value: completed},
	})
	if err != nil {
		return fmt.Errorf("failed to update task completion: %w", err)
	}
	return nil
}

func (r *FirestoreTaskRepository) Update(ctx context.Context, task *models.Task) error {
	_, err := r.client.Collection(taskCollection).Doc(task.ID).Update(ctx, []firestore.Update{
		{Path: "text", Value: task.Text},
		{Path: "category", Value: task.Category},
		{Path: "dueDate", Value: task.DueDate},
	})
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func (r *FirestoreTaskRepository) Delete(ctx context.Context, _ string, taskID string) error {
	_, err := r.client.Collection(taskCollection).Doc(taskID).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (r *FirestoreTaskRepository) DeleteBatch(ctx context.Context, _ string, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	batch := r.client.Batch()
	for _, id := range taskIDs {
		batch.Delete(r.client.Collection(taskCollection).Doc(id))
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch delete: %w", err)
	}
	r.logger.Info("Batch-deleted tasks in Firestore", zap.Int("count", len(taskIDs)))
	return nil
}

func (r *FirestoreTaskRepository) ListByUser(ctx context.Context, userID string) ([]models.Task, error) {
	iter := r.client.Collection(taskCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()

	var tasks []models.Task
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
		var task models.Task
		if err := doc.DataTo(&task); err != nil {
			return nil, fmt.Errorf("failed to decode task data: %w", err)
		}
		task.ID = doc.Ref.ID
		tasks = append(tasks, task)
	}
	models.SortTasks(tasks)
	return tasks, nil
}

func (r *FirestoreTaskRepository) Close() error {
	return r.client.Close()
}

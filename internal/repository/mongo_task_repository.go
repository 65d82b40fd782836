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

// MongoTaskRepository is a MongoDB implementation of the TaskRepository.
// Live snapshots are driven by a change stream on the task collection: every
// event triggers one full re-query, matching the full-replacement snapshot
// contract.
type MongoTaskRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewMongoTaskRepository creates a new MongoTaskRepository on an existing client.
func NewMongoTaskRepository(db *mongo.Database, logger *zap.Logger) *MongoTaskRepository {
	return &MongoTaskRepository{
		coll:   db.Collection(taskCollection),
		logger: logger.Named("mongo_task_repo"),
	}
}

func (r *MongoTaskRepository) Watch(ctx context.Context, userID string) (<-chan []models.Task, error) {
	stream, err := r.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}

	out := make(chan []models.Task)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		send := func() bool {
			tasks, err := r.ListByUser(ctx, userID)
			if err != nil {
				r.logger.Error("Failed to refetch tasks for snapshot", zap.String("userId", userID), zap.Error(err))
				return true
			}
			select {
			case out <- tasks:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// Initial snapshot before any change event.
		if !send() {
			return
		}
		for stream.Next(ctx) {
			if !send() {
				return
			}
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("Task change stream failed", zap.String("userId", userID), zap.Error(err))
		}
	}()
	return out, nil
}

func (r *MongoTaskRepository) Add(ctx context.Context, task *models.Task) (string, error) {
	insert := *task
	insert.ID = uuid.NewString()
	insert.CreatedAt = time.Now()
	if _, err := r.coll.InsertOne(ctx, insert); err != nil {
		return "", fmt.Errorf("failed to add task: %w", err)
	}
	r.logger.Info("Created task in MongoDB", zap.String("taskID", insert.ID), zap.String("userId", task.UserID))
	return insert.ID, nil
}

func (r *MongoTaskRepository) SetCompleted(ctx context.Context, userID, taskID string, completed bool) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": taskID, "userId": userID},
		bson.M{"$set": bson.M{"completed": completed}},
	)
	if err != nil {
		return fmt.Errorf("failed to update task completion: %w", err)
	}
	return nil
}

func (r *MongoTaskRepository) Update(ctx context.Context, task *models.Task) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": task.ID, "userId": task.UserID},
		bson.M{"$set": bson.M{"text": task.Text, "category": task.Category, "dueDate": task.DueDate}},
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func (r *MongoTaskRepository) Delete(ctx context.Context, userID, taskID string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": taskID, "userId": userID}); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (r *MongoTaskRepository) DeleteBatch(ctx context.Context, userID string, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	_, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": taskIDs}, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to batch delete tasks: %w", err)
	}
	r.logger.Info("Batch-deleted tasks in MongoDB", zap.Int("count", len(taskIDs)))
	return nil
}

func (r *MongoTaskRepository) ListByUser(ctx context.Context, userID string) ([]models.Task, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	models.SortTasks(tasks)
	return tasks, nil
}

func (r *MongoTaskRepository) Close() error {
	// The shared mongo client is owned and closed by the app.
	return nil
}

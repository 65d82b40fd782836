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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/repository"
)

var errRemote = errors.New("remote write failed")

// failingRepo wraps a TaskRepository and fails selected operations.
type failingRepo struct {
	repository.TaskRepository
	failAdd    bool
	failSet    bool
	failUpdate bool
	failDelete bool
	failBatch  bool
}

func (f *failingRepo) Add(ctx context.Context, task *models.Task) (string, error) {
	if f.failAdd {
		return "", errRemote
	}
	return f.TaskRepository.Add(ctx, task)
}

func (f *failingRepo) SetCompleted(ctx context.Context, userID, taskID string, completed bool) error {
	if f.failSet {
		return errRemote
	}
	return f.TaskRepository.SetCompleted(ctx, userID, taskID, completed)
}

func (f *failingRepo) Update(ctx context.Context, task *models.Task) error {
	if f.failUpdate {
		return errRemote
	}
	return f.TaskRepository.Update(ctx, task)
}

func (f *failingRepo) Delete(ctx context.Context, userID, taskID string) error {
	if f.failDelete {
		return errRemote
	}
	return f.TaskRepository.Delete(ctx, userID, taskID)
}

func (f *failingRepo) DeleteBatch(ctx context.Context, userID string, taskIDs []string) error {
	if f.failBatch {
		return errRemote
	}
	return f.TaskRepository.DeleteBatch(ctx, userID, taskIDs)
}

const testUser = "user-1"

func newTestStore(t *testing.T) (*Store, *failingRepo) {
	t.Helper()
	repo := &failingRepo{TaskRepository: repository.NewInMemoryTaskRepository(zap.NewNop())}
	return NewStore(repo, testUser, zap.NewNop()), repo
}

func seed(store *Store, tasks ...models.Task) {
	store.apply(tasks)
}

func date(day int) *time.Time {
	d := time.Date(2026, time.September, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestAddValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Add(ctx, "   ", models.CategoryWork, nil), ErrEmptyTask)
	assert.ErrorIs(t, store.Add(ctx, "buy milk", "Nonsense", nil), ErrInvalidCategory)
	assert.Empty(t, store.Tasks())
}

func TestAddProvisionalEntry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	seed(store, models.Task{ID: "a", UserID: testUser, Text: "older", Category: models.CategoryWork})
	require.NoError(t, store.Add(ctx, "buy milk", models.CategoryShopping, nil))

	tasks := store.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "buy milk", tasks[0].Text)
	assert.True(t, tasks[0].Provisional())
}

func TestAddRollback(t *testing.T) {
	store, repo := newTestStore(t)
	repo.failAdd = true

	seed(store, models.Task{ID: "a", UserID: testUser, Text: "keep me", Category: models.CategoryWork})
	before := store.Tasks()

	err := store.Add(context.Background(), "doomed", models.CategoryPersonal, nil)
	require.ErrorIs(t, err, errRemote)
	assert.Equal(t, before, store.Tasks())
}

func TestToggleRollback(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	seed(store, models.Task{ID: "a", UserID: testUser, Text: "task", Category: models.CategoryWork})

	repo.failSet = true
	err := store.Toggle(ctx, "a")
	require.ErrorIs(t, err, errRemote)
	assert.False(t, store.Tasks()[0].Completed)

	repo.failSet = false
	require.NoError(t, store.Toggle(ctx, "a"))
	assert.True(t, store.Tasks()[0].Completed)
}

func TestEditRollback(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	prior := models.Task{ID: "a", UserID: testUser, Text: "original", Category: models.CategoryWork, DueDate: date(1)}
	seed(store, prior)

	repo.failUpdate = true
	err := store.Edit(ctx, "a", "changed", models.CategoryOther, nil)
	require.ErrorIs(t, err, errRemote)
	assert.Equal(t, prior, store.Tasks()[0])

	assert.ErrorIs(t, store.Edit(ctx, "missing", "text", models.CategoryWork, nil), ErrTaskNotFound)
}

func TestDeleteRollback(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	seed(store,
		models.Task{ID: "a", UserID: testUser, Text: "first", Category: models.CategoryWork},
		models.Task{ID: "b", UserID: testUser, Text: "second", Category: models.CategoryWork},
	)

	repo.failDelete = true
	err := store.Delete(ctx, "a")
	require.ErrorIs(t, err, errRemote)
	assert.Len(t, store.Tasks(), 2)

	repo.failDelete = false
	require.NoError(t, store.Delete(ctx, "a"))
	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "b", tasks[0].ID)
}

func TestStaleSnapshotDoesNotResurrectDeletedTask(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	seed(store,
		models.Task{ID: "a", UserID: testUser, Text: "doomed", Category: models.CategoryWork},
		models.Task{ID: "b", UserID: testUser, Text: "survivor", Category: models.CategoryWork},
	)

	require.NoError(t, store.Delete(ctx, "a"))

	// A snapshot captured before the delete landed still carries "a".
	store.apply([]models.Task{
		{ID: "a", UserID: testUser, Text: "doomed", Category: models.CategoryWork},
		{ID: "b", UserID: testUser, Text: "survivor", Category: models.CategoryWork},
	})
	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "b", tasks[0].ID)

	// Once a snapshot confirms the removal, the id is forgotten and may be
	// reused by the store.
	store.apply([]models.Task{{ID: "b", UserID: testUser, Text: "survivor", Category: models.CategoryWork}})
	store.apply([]models.Task{
		{ID: "a", UserID: testUser, Text: "new task, recycled id", Category: models.CategoryWork},
		{ID: "b", UserID: testUser, Text: "survivor", Category: models.CategoryWork},
	})
	assert.Len(t, store.Tasks(), 2)
}

func TestDeleteCompletedResyncOnFailure(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	// Seed the backing repo so the resynchronizing re-fetch has state.
	for _, text := range []string{"done-1", "done-2", "open"} {
		task := models.Task{UserID: testUser, Text: text, Category: models.CategoryWork, Completed: text != "open"}
		_, err := repo.TaskRepository.Add(ctx, &task)
		require.NoError(t, err)
	}
	remote, err := repo.TaskRepository.ListByUser(ctx, testUser)
	require.NoError(t, err)
	seed(store, remote...)

	repo.failBatch = true
	err = store.DeleteCompleted(ctx)
	require.ErrorIs(t, err, errRemote)
	// The failed batch triggered one full re-fetch, so the completed tasks
	// are back.
	assert.Len(t, store.Tasks(), 3)

	repo.failBatch = false
	require.NoError(t, store.DeleteCompleted(ctx))
	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "open", tasks[0].Text)
}

func TestGroupedOrdering(t *testing.T) {
	store, _ := newTestStore(t)
	seed(store,
		models.Task{ID: "1", UserID: testUser, Text: "undated work", Category: models.CategoryWork},
		models.Task{ID: "2", UserID: testUser, Text: "late work", Category: models.CategoryWork, DueDate: date(20)},
		models.Task{ID: "3", UserID: testUser, Text: "early work", Category: models.CategoryWork, DueDate: date(5)},
		models.Task{ID: "4", UserID: testUser, Text: "undated shopping", Category: models.CategoryShopping},
		models.Task{ID: "5", UserID: testUser, Text: "dated shopping", Category: models.CategoryShopping, DueDate: date(1)},
	)

	groups := store.Grouped("all")
	require.Len(t, groups, 2)

	// Groups follow the fixed category order.
	assert.Equal(t, models.CategoryWork, groups[0].Category)
	assert.Equal(t, models.CategoryShopping, groups[1].Category)

	// Within a group: due date ascending, undated last.
	work := groups[0].Tasks
	require.Len(t, work, 3)
	assert.Equal(t, "early work", work[0].Text)
	assert.Equal(t, "late work", work[1].Text)
	assert.Equal(t, "undated work", work[2].Text)

	shopping := groups[1].Tasks
	require.Len(t, shopping, 2)
	assert.Equal(t, "dated shopping", shopping[0].Text)
	assert.Equal(t, "undated shopping", shopping[1].Text)

	// Filtering to one category drops the rest.
	filtered := store.Grouped(string(models.CategoryShopping))
	require.Len(t, filtered, 1)
	assert.Equal(t, models.CategoryShopping, filtered[0].Category)
}

func TestSubscribeAndClose(t *testing.T) {
	repo := repository.NewInMemoryTaskRepository(zap.NewNop())
	store := NewStore(repo, testUser, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Subscribe(ctx))

	task := models.Task{UserID: testUser, Text: "from remote", Category: models.CategoryPersonal}
	_, err := repo.Add(ctx, &task)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(store.Tasks()) == 1
	}, time.Second, 5*time.Millisecond)

	store.Close()

	// After teardown no further snapshots are applied.
	other := models.Task{UserID: testUser, Text: "after close", Category: models.CategoryPersonal}
	_, err = repo.Add(ctx, &other)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, store.Tasks(), 1)
}

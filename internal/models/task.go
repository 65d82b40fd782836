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

package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category classifies a task into one of a fixed set of buckets.
type Category string

const (
	CategoryWork     Category = "Work"
	CategoryPersonal Category = "Personal"
	CategoryShopping Category = "Shopping"
	CategoryOther    Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryShopping, CategoryOther}

func (c Category) IsValid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryShopping, CategoryOther:
		return true
	}
	return false
}

const provisionalIDPrefix = "temp-"

// Task is a single to-do item owned by exactly one user.
type Task struct {
	ID        string     `firestore:"-" bson:"_id,omitempty" json:"id"`
	UserID    string     `firestore:"userId" bson:"userId" json:"userId"`
	Text      string     `firestore:"text" bson:"text" json:"text"`
	Category  Category   `firestore:"category" bson:"category" json:"category"`
	DueDate   *time.Time `firestore:"dueDate" bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	Completed bool       `firestore:"completed" bson:"completed" json:"completed"`
	CreatedAt time.Time  `firestore:"createdAt,serverTimestamp" bson:"createdAt" json:"createdAt"`
}

// NewProvisionalID returns a client-generated id for an optimistic insert.
// The real id arrives with the next authoritative snapshot.
func NewProvisionalID() string {
	return provisionalIDPrefix + uuid.NewString()
}

// Provisional reports whether the task still carries a client-generated id.
func (t Task) Provisional() bool {
	return strings.HasPrefix(t.ID, provisionalIDPrefix)
}

// SortTasks orders tasks by category ascending, then due date ascending with
// undated tasks after all dated tasks. The sort is stable so tasks that
// compare equal keep their snapshot order.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Category != tasks[j].Category {
			return tasks[i].Category < tasks[j].Category
		}
		return dueBefore(tasks[i].DueDate, tasks[j].DueDate)
	})
}

func dueBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

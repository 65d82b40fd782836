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

package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
)

func TestDue(t *testing.T) {
	now := time.Date(2026, time.September, 10, 12, 0, 0, 0, time.UTC)
	in30m := now.Add(30 * time.Minute)
	in2h := now.Add(2 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	tasks := []models.Task{
		{ID: "soon", UserID: "u", Text: "due soon", DueDate: &in30m},
		{ID: "later", UserID: "u", Text: "due later", DueDate: &in2h},
		{ID: "past", UserID: "u", Text: "overdue", DueDate: &yesterday},
		{ID: "done", UserID: "u", Text: "completed", DueDate: &in30m, Completed: true},
		{ID: "undated", UserID: "u", Text: "no due date"},
	}

	due := Due(tasks, time.Hour, now, map[string]bool{})
	require.Len(t, due, 1)
	assert.Equal(t, "soon", due[0].TaskID)

	// Already-sent reminders do not fire again.
	due = Due(tasks, time.Hour, now, map[string]bool{"soon": true})
	assert.Empty(t, due)

	// A wider offset pulls the later task into its window.
	due = Due(tasks, 3*time.Hour, now, map[string]bool{})
	assert.Len(t, due, 2)
}

func TestPush(t *testing.T) {
	var received Reminder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	svc := NewReminderService(srv.URL, otel.Tracer("test"), zap.NewNop())
	require.True(t, svc.Enabled())

	reminder := Reminder{TaskID: "t1", UserID: "u1", Text: "pay rent", Category: "Personal"}
	require.NoError(t, svc.Push(context.Background(), reminder))
	assert.Equal(t, "t1", received.TaskID)
	assert.Equal(t, "pay rent", received.Text)
}

func TestPushNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewReminderService(srv.URL, otel.Tracer("test"), zap.NewNop())
	err := svc.Push(context.Background(), Reminder{TaskID: "t1"})
	assert.Error(t, err)
}

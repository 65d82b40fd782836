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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
)

// ReminderService pushes due-date reminders to a configured webhook.
type ReminderService struct {
	webhookURL string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewReminderService creates a new ReminderService.
func NewReminderService(webhookURL string, tracer trace.Tracer, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			),
			Timeout: 10 * time.Second,
		},
		tracer: tracer,
		logger: logger.Named("reminder_service"),
	}
}

// Enabled reports whether a webhook URL is configured.
func (s *ReminderService) Enabled() bool {
	return s.webhookURL != ""
}

// Reminder is the JSON payload posted to the webhook.
type Reminder struct {
	TaskID   string    `json:"taskId"`
	UserID   string    `json:"userId"`
	Text     string    `json:"text"`
	Category string    `json:"category"`
	DueDate  time.Time `json:"dueDate"`
	RemindAt time.Time `json:"remindAt"`
}

// Push posts one reminder to the webhook.
func (s *ReminderService) Push(ctx context.Context, reminder Reminder) error {
	ctx, span := s.tracer.Start(ctx, "ReminderService.Push")
	defer span.End()

	payload, err := json.Marshal(reminder)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Marshal reminder failed")
		return fmt.Errorf("failed to marshal reminder: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		s.logger.Error("Failed to create reminder request", zap.String("url", s.webhookURL), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create request failed")
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	span.SetAttributes(
		attribute.String("http.url", s.webhookURL),
		attribute.String("task.id", reminder.TaskID),
	)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("Failed to send reminder request", zap.String("taskID", reminder.TaskID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "HTTP request failed")
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("reminder webhook returned non-success status %d: %s", resp.StatusCode, string(bodyBytes))
		s.logger.Error("Reminder webhook error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("taskID", reminder.TaskID),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Webhook returned non-success")
		return err
	}

	s.logger.Info("Pushed reminder", zap.String("taskID", reminder.TaskID), zap.Int("statusCode", resp.StatusCode))
	span.SetStatus(codes.Ok, "Reminder pushed")
	return nil
}

// Due returns the reminders that should fire now for the given tasks and
// reminder offset: an incomplete task enters its window when now is within
// [dueDate - offset, dueDate]. sent filters tasks already reminded.
func Due(tasks []models.Task, offset time.Duration, now time.Time, sent map[string]bool) []Reminder {
	var due []Reminder
	for _, t := range tasks {
		if t.Completed || t.DueDate == nil || sent[t.ID] {
			continue
		}
		remindAt := t.DueDate.Add(-offset)
		if now.Before(remindAt) || now.After(*t.DueDate) {
			continue
		}
		due = append(due, Reminder{
			TaskID:   t.ID,
			UserID:   t.UserID,
			Text:     t.Text,
			Category: string(t.Category),
			DueDate:  *t.DueDate,
			RemindAt: remindAt,
		})
	}
	return due
}

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

// Package session ties the two subsystems to the auth-state signal: a
// sign-in constructs a session owning the live task subscription, the
// periodic preference saver and the reminder loop; a sign-out or a user
// change tears all of them down deterministically.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/prefs"
	"donelist.dev/donelist/internal/repository"
	"donelist.dev/donelist/internal/service"
	"donelist.dev/donelist/internal/tasks"
)

const reminderPollInterval = time.Minute

// Session is the per-user working state for one signed-in period.
type Session struct {
	UserID string
	User   *models.User
	Tasks  *tasks.Store

	reconciler *prefs.Reconciler
	logger     *zap.Logger

	mu    sync.RWMutex
	prefs models.Preferences

	stopSave func()
	cancel   context.CancelFunc
	done     chan struct{}
}

// Preferences returns the current in-memory preference snapshot.
func (s *Session) Preferences() models.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// SetPreference applies one field to the in-memory set and pushes it through
// every storage tier. The returned flag reports the remote write outcome.
func (s *Session) SetPreference(ctx context.Context, key string, value any) (bool, error) {
	patch, err := models.PatchField(key, value)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	patch.Apply(&s.prefs)
	s.mu.Unlock()
	return s.reconciler.SetPreference(ctx, s.UserID, key, value)
}

// SetPreferences applies several fields at once.
func (s *Session) SetPreferences(ctx context.Context, patch models.PreferencePatch) (bool, error) {
	s.mu.Lock()
	patch.Apply(&s.prefs)
	s.mu.Unlock()
	return s.reconciler.SetPreferences(ctx, s.UserID, patch)
}

// Close tears the session down: the reminder loop stops, the periodic saver
// performs its final save, and the task subscription is cancelled. In-memory
// state is unreachable afterwards.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	if s.stopSave != nil {
		s.stopSave()
	}
	s.Tasks.Close()
	s.logger.Info("Session closed", zap.String("userId", s.UserID))
}

// Manager owns the single active session and reacts to auth-state
// transitions. Register HandleAuthState with the identity provider.
type Manager struct {
	taskRepo     repository.TaskRepository
	reconciler   *prefs.Reconciler
	reminders    *service.ReminderService
	saveInterval time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	active *Session
}

// NewManager creates a session Manager.
func NewManager(
	taskRepo repository.TaskRepository,
	reconciler *prefs.Reconciler,
	reminders *service.ReminderService,
	saveInterval time.Duration,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		taskRepo:     taskRepo,
		reconciler:   reconciler,
		reminders:    reminders,
		saveInterval: saveInterval,
		logger:       logger.Named("session"),
	}
}

// HandleAuthState is the auth-state listener: a user starts a session
// (tearing down any previous one, including another user's), nil ends it.
func (m *Manager) HandleAuthState(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if user != nil && user.ID == m.active.UserID {
			return
		}
		m.active.Close()
		m.active = nil
	}
	if user == nil {
		return
	}

	session, err := m.start(user)
	if err != nil {
		m.logger.Error("Failed to start session", zap.String("userId", user.ID), zap.Error(err))
		return
	}
	m.active = session
}

// Active returns the session for the given user, or nil when that user has
// no live session.
func (m *Manager) Active(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.UserID != userID {
		return nil
	}
	return m.active
}

// Close tears down the active session, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		m.active.Close()
		m.active = nil
	}
}

func (m *Manager) start(user *models.User) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())

	store := tasks.NewStore(m.taskRepo, user.ID, m.logger)
	if err := store.Subscribe(ctx); err != nil {
		cancel()
		return nil, err
	}

	session := &Session{
		UserID:     user.ID,
		User:       user,
		Tasks:      store,
		reconciler: m.reconciler,
		logger:     m.logger,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	initCtx, initCancel := context.WithTimeout(ctx, 15*time.Second)
	defer initCancel()
	if _, err := m.reconciler.Initialize(initCtx, user.ID); err != nil {
		m.logger.Warn("Preference initialization failed, continuing with defaults",
			zap.String("userId", user.ID), zap.Error(err))
	}
	session.prefs = m.reconciler.Load(initCtx, user.ID)

	session.stopSave = m.reconciler.PeriodicSave(user.ID, session.Preferences, m.saveInterval)

	go session.reminderLoop(ctx, m.reminders)

	m.logger.Info("Session started", zap.String("userId", user.ID))
	return session, nil
}

// reminderLoop polls for tasks entering their reminder window while the
// dueDateReminders preference is on.
func (s *Session) reminderLoop(ctx context.Context, reminders *service.ReminderService) {
	defer close(s.done)
	if reminders == nil || !reminders.Enabled() {
		return
	}

	sent := make(map[string]bool)
	ticker := time.NewTicker(reminderPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			current := s.Preferences()
			if !current.DueDateReminders {
				continue
			}
			for _, reminder := range service.Due(s.Tasks.Tasks(), current.ReminderTime.Offset(), now, sent) {
				if err := reminders.Push(ctx, reminder); err != nil {
					s.logger.Warn("Reminder push failed", zap.String("taskID", reminder.TaskID), zap.Error(err))
					continue
				}
				sent[reminder.TaskID] = true
			}
		}
	}
}

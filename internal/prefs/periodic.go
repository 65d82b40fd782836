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

package prefs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
)

// PeriodicSave pushes the latest in-memory snapshot through SetPreferences
// on a fixed interval, as a durability net against missed event-driven
// saves. It saves once immediately. The returned stop function performs one
// final save, then blocks until the loop has exited; it is safe to call
// exactly once.
func (r *Reconciler) PeriodicSave(userID string, snapshot func() models.Preferences, interval time.Duration) (stop func()) {
	saveNow := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := r.SetPreferences(ctx, userID, models.PatchOf(snapshot())); err != nil {
			r.logger.Warn("Periodic preference save failed", zap.String("userId", userID), zap.Error(err))
		}
	}

	saveNow()

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				saveNow()
			case <-quit:
				return
			}
		}
	}()

	return func() {
		close(quit)
		<-done
		r.logger.Info("Stopping periodic preference saving", zap.String("userId", userID))
		saveNow()
	}
}

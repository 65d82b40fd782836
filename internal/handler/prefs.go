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

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"donelist.dev/donelist/internal/models"
)

type setPreferenceRequest struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value"`
}

// HandleGetPreferences returns the session's in-memory preference snapshot.
func (h *HttpHandlers) HandleGetPreferences(c *gin.Context) {
	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, active.Preferences())
}

// HandlePatchPreference sets a single field across all tiers. The response
// reports whether the authoritative write landed.
func (h *HttpHandlers) HandlePatchPreference(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandlePatchPreference")
	defer span.End()

	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	var req setPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	saved, err := active.SetPreference(ctx, req.Key, req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved, "preferences": active.Preferences()})
}

// HandlePutPreferences sets several fields at once.
func (h *HttpHandlers) HandlePutPreferences(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandlePutPreferences")
	defer span.End()

	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	var patch models.PreferencePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid preference payload"})
		return
	}
	if patch.FontSize != nil && !patch.FontSize.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fontSize must be one of small/medium/large"})
		return
	}
	if patch.ReminderTime != nil && !patch.ReminderTime.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reminderTime is not a valid offset"})
		return
	}
	saved, err := active.SetPreferences(ctx, patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved, "preferences": active.Preferences()})
}

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
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/models"
	"donelist.dev/donelist/internal/tasks"
)

type taskRequest struct {
	Text     string `json:"text" binding:"required"`
	Category string `json:"category" binding:"required"`
	DueDate  string `json:"dueDate"`
}

// parseDueDate parses an optional calendar date (no time component).
func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *HttpHandlers) writeTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tasks.ErrEmptyTask), errors.Is(err, tasks.ErrInvalidCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, tasks.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Task operation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote write failed, local state rolled back"})
	}
}

// HandleListTasks returns the current list grouped by category, optionally
// filtered to one category via ?category=.
func (h *HttpHandlers) HandleListTasks(c *gin.Context) {
	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": active.Tasks.Grouped(c.Query("category"))})
}

// HandleAddTask performs an optimistic insert.
func (h *HttpHandlers) HandleAddTask(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleAddTask")
	defer span.End()

	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text and category are required"})
		return
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dueDate must be YYYY-MM-DD"})
		return
	}
	if err := active.Tasks.Add(ctx, req.Text, models.Category(req.Category), dueDate); err != nil {
		h.writeTaskError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// HandleToggleTask flips a task's completion flag.
func (h *HttpHandlers) HandleToggleTask(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleToggleTask")
	defer span.End()

	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	if err := active.Tasks.Toggle(ctx, c.Param("id")); err != nil {
		h.writeTaskError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// HandleEditTask applies the full field set to a task.
func (h *HttpHandlers) HandleEditTask(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleEditTask")
	defer span.End()

	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text and category are required"})
		return
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dueDate must be YYYY-MM-DD"})
		return
	}
	if err := active.Tasks.Edit(ctx, c.Param("id"), req.Text, models.Category(req.Category), dueDate); err != nil {
		h.writeTaskError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// HandleDeleteTask removes one task.
func (h *HttpHandlers) HandleDeleteTask(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleDeleteTask")
	defer span.End()

	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	if err := active.Tasks.Delete(ctx, c.Param("id")); err != nil {
		h.writeTaskError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// HandleDeleteCompleted removes every completed task in one batch.
func (h *HttpHandlers) HandleDeleteCompleted(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleDeleteCompleted")
	defer span.End()

	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	if err := active.Tasks.DeleteCompleted(ctx); err != nil {
		h.writeTaskError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

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
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/profile"
)

// HandleUploadPicture accepts a multipart "picture" file, validates it and
// propagates the stored URL to every tier.
func (h *HttpHandlers) HandleUploadPicture(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleUploadPicture")
	defer span.End()

	userID, ok := h.userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("picture")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "picture file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable picture file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable picture file"})
		return
	}

	photoURL, err := h.profile.Upload(ctx, userID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		if errors.Is(err, profile.ErrNotImage) || errors.Is(err, profile.ErrTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Picture upload failed", zap.String("userId", userID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pictureURL": photoURL})
}

// HandleGetPicture resolves the freshest picture URL across all tiers.
func (h *HttpHandlers) HandleGetPicture(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleGetPicture")
	defer span.End()

	userID, ok := h.userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	user, err := h.identity.Reload(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to load account for picture", zap.String("userId", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pictureURL": h.profile.Resolve(ctx, user)})
}

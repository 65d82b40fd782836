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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"donelist.dev/donelist/internal/identity"
	"donelist.dev/donelist/internal/models"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authResponse struct {
	User  *models.User  `json:"user"`
	Token *oauth2.Token `json:"token"`
}

// HandleRegister creates an account and starts its session.
func (h *HttpHandlers) HandleRegister(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleRegister")
	defer span.End()

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, token, err := h.identity.SignUp(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, identity.ErrInvalidEmail),
			errors.Is(err, identity.ErrWeakPassword),
			errors.Is(err, identity.ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, authResponse{User: user, Token: token})
}

// HandleLogin authenticates and starts the user's session.
func (h *HttpHandlers) HandleLogin(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleLogin")
	defer span.End()

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, token, err := h.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, authResponse{User: user, Token: token})
}

// HandleLogout ends the user's session.
func (h *HttpHandlers) HandleLogout(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	h.identity.SignOut(userID)
	c.Status(http.StatusNoContent)
}

// HandleRefresh exchanges a refresh token for a fresh pair.
func (h *HttpHandlers) HandleRefresh(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleRefresh")
	defer span.End()

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	token, err := h.identity.Refresh(ctx, req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// HandleGetMe returns the account record with its resolved picture URL.
func (h *HttpHandlers) HandleGetMe(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleGetMe")
	defer span.End()

	userID, ok := h.userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	user, err := h.identity.Reload(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to load account", zap.String("userId", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}
	user.PictureURL = h.profile.Resolve(ctx, user)
	c.JSON(http.StatusOK, user)
}

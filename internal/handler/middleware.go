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
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/identity"
	"donelist.dev/donelist/internal/session"
	"donelist.dev/donelist/internal/utils"
)

const claimsContextKey = "claims"

// AuthMiddleware validates the bearer access token and stores its claims on
// the request context.
func (h *HttpHandlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := h.Tracer.Start(c.Request.Context(), "AuthMiddleware")
		defer span.End()

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := h.identity.Verify(token)
		if err != nil {
			h.logger.Warn("Rejected invalid access token", zap.Error(err))
			span.RecordError(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

func (h *HttpHandlers) LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		h.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func (h *HttpHandlers) CORSMiddleware() gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, o := range utils.SplitAndTrim(h.config.CORSAllowedOrigins, ",") {
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization,Content-Type")
				c.Header("Access-Control-Max-Age", "600")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// userID returns the authenticated user id from the verified claims.
func (h *HttpHandlers) userID(c *gin.Context) (string, bool) {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return "", false
	}
	claims, ok := value.(*identity.Claims)
	if !ok {
		return "", false
	}
	return claims.UserID, true
}

// activeSession resolves the signed-in user's session, writing the error
// response when there is none.
func (h *HttpHandlers) activeSession(c *gin.Context) (*session.Session, bool) {
	userID, ok := h.userID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	active := h.sessions.Active(userID)
	if active == nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "No active session, sign in first"})
		return nil, false
	}
	return active, true
}

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

import "github.com/gin-gonic/gin"

func (h *HttpHandlers) RegisterRoutes(router *gin.Engine) {
	router.Use(h.LoggerMiddleware())
	router.Use(h.CORSMiddleware())

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.HandleRegister)
			auth.POST("/login", h.HandleLogin)
			auth.POST("/refresh", h.HandleRefresh)
			auth.POST("/logout", h.AuthMiddleware(), h.HandleLogout)
		}

		me := v1.Group("/me")
		me.Use(h.AuthMiddleware())
		{
			me.GET("", h.HandleGetMe)
		}

		tasks := v1.Group("/tasks")
		tasks.Use(h.AuthMiddleware())
		{
			tasks.GET("", h.HandleListTasks)
			tasks.POST("", h.HandleAddTask)
			tasks.DELETE("/completed", h.HandleDeleteCompleted)
			tasks.PATCH("/:id/toggle", h.HandleToggleTask)
			tasks.PUT("/:id", h.HandleEditTask)
			tasks.DELETE("/:id", h.HandleDeleteTask)
		}

		preferences := v1.Group("/preferences")
		preferences.Use(h.AuthMiddleware())
		{
			preferences.GET("", h.HandleGetPreferences)
			preferences.PUT("", h.HandlePutPreferences)
			preferences.PATCH("", h.HandlePatchPreference)
		}

		profile := v1.Group("/profile")
		profile.Use(h.AuthMiddleware())
		{
			profile.GET("/picture", h.HandleGetPicture)
			profile.POST("/picture", h.HandleUploadPicture)
		}
	}
}

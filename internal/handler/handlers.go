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
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/config"
	"donelist.dev/donelist/internal/identity"
	"donelist.dev/donelist/internal/profile"
	"donelist.dev/donelist/internal/session"
)

// HttpHandlers holds application-wide state and dependencies.
type HttpHandlers struct {
	logger   *zap.Logger
	config   *config.Config
	identity *identity.Service
	sessions *session.Manager
	profile  *profile.Service
	Tracer   trace.Tracer
}

// NewHttpHandlers creates a new HttpHandlers instance.
func NewHttpHandlers(
	logger *zap.Logger,
	cfg *config.Config,
	ident *identity.Service,
	sessions *session.Manager,
	profileService *profile.Service,
	tracer trace.Tracer,
) *HttpHandlers {
	return &HttpHandlers{
		logger:   logger.Named("http_handler"),
		config:   cfg,
		identity: ident,
		sessions: sessions,
		profile:  profileService,
		Tracer:   tracer,
	}
}

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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration values.
type Config struct {
	Port                 string
	StorageType          string // firestore, mongo or inmemory
	GCPProjectID         string
	GCSBucket            string
	MongoURI             string
	MongoDatabase        string
	RedisAddr            string
	SecretKey            string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	PrefSaveInterval     time.Duration
	ReminderWebhookURL   string
	CORSAllowedOrigins   string
	OtelExporterEndpoint string
	Version              string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		StorageType:          getEnv("STORAGE_TYPE", "inmemory"),
		GCPProjectID:         getEnv("GCP_PROJECT_ID", ""),
		GCSBucket:            getEnv("GCS_BUCKET", ""),
		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:        getEnv("MONGO_DATABASE", "donelist"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		SecretKey:            getEnv("SECRET_KEY", ""),
		AccessTokenTTL:       getCountEnv("ACCESS_TOKEN_TTL_MINUTES", 15) * time.Minute,
		RefreshTokenTTL:      getCountEnv("REFRESH_TOKEN_TTL_MINUTES", 7*24*60) * time.Minute,
		PrefSaveInterval:     getCountEnv("PREF_SAVE_INTERVAL_SECONDS", 30) * time.Second,
		ReminderWebhookURL:   getEnv("REMINDER_WEBHOOK_URL", ""),
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", ""),
		OtelExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
		Version:              getEnv("VERSION", "dev"),
	}

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is not set")
	}

	if cfg.StorageType == "firestore" && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("STORAGE_TYPE is 'firestore' but GCP_PROJECT_ID is not set")
	}

	if cfg.StorageType == "firestore" && cfg.GCSBucket == "" {
		return nil, fmt.Errorf("STORAGE_TYPE is 'firestore' but GCS_BUCKET is not set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getCountEnv(key string, fallback int64) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(fallback)
}

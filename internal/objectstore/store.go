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

// Package objectstore abstracts the durable binary store holding uploaded
// profile pictures.
package objectstore

import "context"

// Store uploads binary objects and hands back durable public URLs.
type Store interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Close() error
}

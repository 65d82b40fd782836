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

package models

import "time"

// User represents an account held by the identity provider.
type User struct {
	ID           string    `firestore:"-" bson:"_id,omitempty" json:"id"`
	Email        string    `firestore:"email" bson:"email" json:"email"`
	DisplayName  string    `firestore:"displayName" bson:"displayName" json:"displayName"`
	PasswordHash string    `firestore:"passwordHash" bson:"passwordHash" json:"-"`
	PictureURL   string    `firestore:"pictureURL,omitempty" bson:"pictureURL,omitempty" json:"pictureURL,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt" bson:"createdAt" json:"createdAt"`
	LastUpdated  time.Time `firestore:"lastUpdated" bson:"lastUpdated" json:"lastUpdated"`
}

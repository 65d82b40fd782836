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

import (
	"fmt"
	"time"
)

// FontSize is the UI text size preference.
type FontSize string

const (
	FontSizeSmall  FontSize = "small"
	FontSizeMedium FontSize = "medium"
	FontSizeLarge  FontSize = "large"
)

func (f FontSize) IsValid() bool {
	switch f {
	case FontSizeSmall, FontSizeMedium, FontSizeLarge:
		return true
	}
	return false
}

// ReminderTime is how far ahead of a task's due date a reminder fires.
type ReminderTime string

const (
	Remind10Minutes ReminderTime = "10 minutes before"
	Remind1Hour     ReminderTime = "1 hour before"
	Remind1Day      ReminderTime = "1 day before"
)

func (r ReminderTime) IsValid() bool {
	switch r {
	case Remind10Minutes, Remind1Hour, Remind1Day:
		return true
	}
	return false
}

// Offset returns the lead time the reminder setting represents.
func (r ReminderTime) Offset() time.Duration {
	switch r {
	case Remind10Minutes:
		return 10 * time.Minute
	case Remind1Hour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Preferences holds one user's complete UI/behavior settings. A Preferences
// value always has every field populated; partial records travel as a
// PreferencePatch instead.
type Preferences struct {
	DarkMode         bool         `firestore:"darkMode" bson:"darkMode" json:"darkMode"`
	FontSize         FontSize     `firestore:"fontSize" bson:"fontSize" json:"fontSize"`
	AutoSortTasks    bool         `firestore:"autoSortTasks" bson:"autoSortTasks" json:"autoSortTasks"`
	DueDateReminders bool         `firestore:"dueDateReminders" bson:"dueDateReminders" json:"dueDateReminders"`
	ReminderTime     ReminderTime `firestore:"reminderTime" bson:"reminderTime" json:"reminderTime"`
	SidebarExpanded  bool         `firestore:"sidebarExpanded" bson:"sidebarExpanded" json:"sidebarExpanded"`
	ProfilePanelOpen bool         `firestore:"profilePanelOpen" bson:"profilePanelOpen" json:"profilePanelOpen"`
}

// DefaultPreferences returns the fixed default set used to back-fill any
// partial record read from any tier.
func DefaultPreferences() Preferences {
	return Preferences{
		DarkMode:         false,
		FontSize:         FontSizeMedium,
		AutoSortTasks:    true,
		DueDateReminders: true,
		ReminderTime:     Remind1Day,
		SidebarExpanded:  false,
		ProfilePanelOpen: false,
	}
}

// PreferencePatch is a partial preference record: nil fields were absent from
// the tier the patch was read from.
type PreferencePatch struct {
	DarkMode         *bool         `firestore:"darkMode,omitempty" bson:"darkMode,omitempty" json:"darkMode,omitempty"`
	FontSize         *FontSize     `firestore:"fontSize,omitempty" bson:"fontSize,omitempty" json:"fontSize,omitempty"`
	AutoSortTasks    *bool         `firestore:"autoSortTasks,omitempty" bson:"autoSortTasks,omitempty" json:"autoSortTasks,omitempty"`
	DueDateReminders *bool         `firestore:"dueDateReminders,omitempty" bson:"dueDateReminders,omitempty" json:"dueDateReminders,omitempty"`
	ReminderTime     *ReminderTime `firestore:"reminderTime,omitempty" bson:"reminderTime,omitempty" json:"reminderTime,omitempty"`
	SidebarExpanded  *bool         `firestore:"sidebarExpanded,omitempty" bson:"sidebarExpanded,omitempty" json:"sidebarExpanded,omitempty"`
	ProfilePanelOpen *bool         `firestore:"profilePanelOpen,omitempty" bson:"profilePanelOpen,omitempty" json:"profilePanelOpen,omitempty"`
}

// Apply overlays every present field of the patch onto prefs.
func (p PreferencePatch) Apply(prefs *Preferences) {
	if p.DarkMode != nil {
		prefs.DarkMode = *p.DarkMode
	}
	if p.FontSize != nil {
		prefs.FontSize = *p.FontSize
	}
	if p.AutoSortTasks != nil {
		prefs.AutoSortTasks = *p.AutoSortTasks
	}
	if p.DueDateReminders != nil {
		prefs.DueDateReminders = *p.DueDateReminders
	}
	if p.ReminderTime != nil {
		prefs.ReminderTime = *p.ReminderTime
	}
	if p.SidebarExpanded != nil {
		prefs.SidebarExpanded = *p.SidebarExpanded
	}
	if p.ProfilePanelOpen != nil {
		prefs.ProfilePanelOpen = *p.ProfilePanelOpen
	}
}

// Incomplete reports whether any field is missing from the patch, i.e. the
// record it was read from needs back-filling with defaults.
func (p PreferencePatch) Incomplete() bool {
	return p.DarkMode == nil || p.FontSize == nil || p.AutoSortTasks == nil ||
		p.DueDateReminders == nil || p.ReminderTime == nil ||
		p.SidebarExpanded == nil || p.ProfilePanelOpen == nil
}

// IsZero reports whether the patch carries no fields at all.
func (p PreferencePatch) IsZero() bool {
	return p == PreferencePatch{}
}

// PatchOf converts a complete preference set into a full patch.
func PatchOf(prefs Preferences) PreferencePatch {
	return PreferencePatch{
		DarkMode:         &prefs.DarkMode,
		FontSize:         &prefs.FontSize,
		AutoSortTasks:    &prefs.AutoSortTasks,
		DueDateReminders: &prefs.DueDateReminders,
		ReminderTime:     &prefs.ReminderTime,
		SidebarExpanded:  &prefs.SidebarExpanded,
		ProfilePanelOpen: &prefs.ProfilePanelOpen,
	}
}

// PatchField builds a single-field patch from a preference key and value,
// validating enumerated values. Booleans accept bool, enums accept string.
func PatchField(key string, value any) (PreferencePatch, error) {
	var p PreferencePatch
	switch key {
	case "darkMode", "autoSortTasks", "dueDateReminders", "sidebarExpanded", "profilePanelOpen":
		b, ok := value.(bool)
		if !ok {
			return p, fmt.Errorf("preference %q expects a boolean, got %T", key, value)
		}
		switch key {
		case "darkMode":
			p.DarkMode = &b
		case "autoSortTasks":
			p.AutoSortTasks = &b
		case "dueDateReminders":
			p.DueDateReminders = &b
		case "sidebarExpanded":
			p.SidebarExpanded = &b
		case "profilePanelOpen":
			p.ProfilePanelOpen = &b
		}
	case "fontSize":
		s, ok := value.(string)
		if !ok || !FontSize(s).IsValid() {
			return p, fmt.Errorf("preference fontSize expects one of small/medium/large, got %v", value)
		}
		f := FontSize(s)
		p.FontSize = &f
	case "reminderTime":
		s, ok := value.(string)
		if !ok || !ReminderTime(s).IsValid() {
			return p, fmt.Errorf("preference reminderTime expects a valid offset, got %v", value)
		}
		r := ReminderTime(s)
		p.ReminderTime = &r
	default:
		return p, fmt.Errorf("unknown preference key %q", key)
	}
	return p, nil
}

// CachedPreferences is the blob written to the local and session cache tiers.
// The timestamp is unix milliseconds of the write, used for recency checks.
type CachedPreferences struct {
	PreferencePatch
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

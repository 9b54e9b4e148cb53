package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

type User struct {
	BaseModel
	Username string `json:"username" gorm:"uniqueIndex;size:100;not null"`
	Email    string `json:"email" gorm:"uniqueIndex;size:100;not null"`
	Password string `json:"-" gorm:"size:255;not null"`
	Status   int    `json:"status" gorm:"default:1"` // 1:active, 0:inactive
}

// Action kinds.
const (
	ActionClick = "click"
	ActionInput = "input"
	ActionEnter = "enter"
)

// Field kinds for input actions, used by the resolver fallback.
const (
	FieldPassword = "password"
	FieldEmail    = "email"
	FieldText     = "text"
	FieldOther    = "other"
)

// Action is one recorded user interaction. Selectors is ordered most-specific
// first and is never empty after synthesis.
type Action struct {
	Kind         string                 `json:"kind"`
	TimeOffsetMs int64                  `json:"time_offset_ms"`
	Selectors    []string               `json:"selectors"`
	Value        string                 `json:"value,omitempty"`
	FieldKind    string                 `json:"field_kind,omitempty"`
	TagName      string                 `json:"tag_name,omitempty"`
	Label        string                 `json:"label,omitempty"`
	Coordinates  map[string]interface{} `json:"coordinates,omitempty"`
}

// SameTarget reports whether two actions point at the same recorded element,
// judged by exact selector-set equality. The input merge rule keys on this.
func (a Action) SameTarget(b Action) bool {
	if len(a.Selectors) != len(b.Selectors) {
		return false
	}
	for i := range a.Selectors {
		if a.Selectors[i] != b.Selectors[i] {
			return false
		}
	}
	return true
}

// SiteRecord is the persisted, replayable action sequence for one hostname.
// At most one record per hostname; saving replaces any prior record.
type SiteRecord struct {
	BaseModel
	Hostname   string    `json:"hostname" gorm:"uniqueIndex;size:255;not null"`
	URL        string    `json:"url" gorm:"size:500;not null"`
	Actions    string    `json:"actions" gorm:"type:longtext"` // JSON format Action array
	RecordedAt time.Time `json:"recorded_at"`
	// Display copies only; replay drives Actions, never these fields.
	Username       string `json:"username" gorm:"size:255"`
	Password       string `json:"-" gorm:"size:255"`
	CronExpression string `json:"cron_expression" gorm:"size:100"`
	Status         int    `json:"status" gorm:"default:1"`
	UserID         uint   `json:"user_id"`
	User           User   `json:"user" gorm:"foreignKey:UserID"`
}

func (sr *SiteRecord) GetActions() ([]Action, error) {
	var actions []Action
	if sr.Actions == "" {
		return actions, nil
	}
	err := json.Unmarshal([]byte(sr.Actions), &actions)
	return actions, err
}

func (sr *SiteRecord) SetActions(actions []Action) error {
	data, err := json.Marshal(actions)
	if err != nil {
		return err
	}
	sr.Actions = string(data)
	return nil
}

// ReplayRun records one replay attempt against a saved site.
type ReplayRun struct {
	BaseModel
	SiteRecordID uint       `json:"site_record_id" gorm:"not null"`
	SiteRecord   SiteRecord `json:"site_record" gorm:"foreignKey:SiteRecordID"`
	Trigger      string     `json:"trigger"` // manual, auto, scheduled
	Status       string     `json:"status"`  // pending, running, completed, failed, cancelled
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Duration     int        `json:"duration"` // in milliseconds
	TotalSteps   int        `json:"total_steps"`
	PassedSteps  int        `json:"passed_steps"`
	FailedSteps  int        `json:"failed_steps"`
	ErrorMessage string     `json:"error_message" gorm:"type:text"`
	StepLogs     string     `json:"step_logs" gorm:"type:longtext"` // JSON format
}

// SessionMirror is the crash-recovery copy of the in-progress recording
// session. One row per recording session ID, rewritten on every captured
// action and deleted when the session ends.
type SessionMirror struct {
	BaseModel
	SessionID   string    `json:"session_id" gorm:"uniqueIndex;size:64;not null"`
	Domain      string    `json:"domain" gorm:"size:255"`
	Actions     string    `json:"actions" gorm:"type:longtext"` // JSON format Action array
	ActionCount int       `json:"action_count"`
	StartTime   time.Time `json:"start_time"`
}

func (sm *SessionMirror) GetActions() ([]Action, error) {
	var actions []Action
	if sm.Actions == "" {
		return actions, nil
	}
	err := json.Unmarshal([]byte(sm.Actions), &actions)
	return actions, err
}

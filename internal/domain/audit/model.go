package audit

import (
	"strings"

	"github.com/carepulse/console/pkg/wire"
)

// Category groups system event actions for filtering.
type Category string

const (
	CategoryAuth   Category = "auth"
	CategoryAccess Category = "access"
	CategorySystem Category = "system"
)

// Severity ranks system events for display.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type actionInfo struct {
	label    string
	category Category
	severity Severity
}

// systemActions are the actions the system event feed shows. Anything else
// the endpoint returns is dropped.
var systemActions = map[string]actionInfo{
	"user_login":           {"Login", CategoryAuth, SeverityInfo},
	"user_logout":          {"Logout", CategoryAuth, SeverityInfo},
	"failed_login":         {"Failed Login", CategoryAuth, SeverityWarning},
	"password_reset":       {"Password Reset", CategoryAuth, SeverityWarning},
	"user_created":         {"User Created", CategoryAccess, SeverityInfo},
	"role_changed":         {"Role Changed", CategoryAccess, SeverityInfo},
	"account_disabled":     {"Account Disabled", CategoryAccess, SeverityCritical},
	"ivr_service_restart":  {"IVR Service Restart", CategorySystem, SeverityCritical},
	"scheduler_delay":      {"Scheduler Delay", CategorySystem, SeverityWarning},
	"api_failure":          {"API Failure", CategorySystem, SeverityCritical},
	"twilio_webhook_error": {"Twilio Webhook Error", CategorySystem, SeverityCritical},
}

// IsSystemAction reports whether action belongs to the system event feed.
func IsSystemAction(action string) bool {
	_, ok := systemActions[action]
	return ok
}

// CategoryOf returns the category of action; unknown actions are system.
func CategoryOf(action string) Category {
	if info, ok := systemActions[action]; ok {
		return info.category
	}
	return CategorySystem
}

// SeverityOf returns the severity of action; unknown actions are info.
func SeverityOf(action string) Severity {
	if info, ok := systemActions[action]; ok {
		return info.severity
	}
	return SeverityInfo
}

// LabelOf returns the display label of action.
func LabelOf(action string) string {
	if info, ok := systemActions[action]; ok {
		return info.label
	}
	return strings.ReplaceAll(action, "_", " ")
}

// Entry is one immutable audit record.
type Entry struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Meta      map[string]any `json:"meta"`
	CreatedAt wire.Time      `json:"created_at"`
}

func (e Entry) metaString(key string) string {
	if e.Meta == nil {
		return ""
	}
	s, _ := e.Meta[key].(string)
	return s
}

// Actor is who performed a care action: the doctor, then the user, then
// "Admin".
func (e Entry) Actor() string {
	if s := e.metaString("doctor_name"); s != "" {
		return s
	}
	if s := e.metaString("user_name"); s != "" {
		return s
	}
	return "Admin"
}

// UserName is meta.user_name, or "".
func (e Entry) UserName() string { return e.metaString("user_name") }

// Role is meta.role, or "".
func (e Entry) Role() string { return e.metaString("role") }

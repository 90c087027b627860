package db

import (
	"time"

	"github.com/google/uuid"
)

// TamperEventType categorizes the tamper signal that produced an event.
type TamperEventType string

const (
	EventPhysicalMovement          TamperEventType = "PHYSICAL_MOVEMENT"
	EventConnectionTampering       TamperEventType = "CONNECTION_TAMPERING"
	EventPanelAccess               TamperEventType = "PANEL_ACCESS"
	EventVoltageFluctuation        TamperEventType = "VOLTAGE_FLUCTUATION"
	EventLocationChange            TamperEventType = "LOCATION_CHANGE"
	EventCommunicationInterference TamperEventType = "COMMUNICATION_INTERFERENCE"
	EventUnauthorizedAccess        TamperEventType = "UNAUTHORIZED_ACCESS"
)

// Valid reports whether t is a known event type.
func (t TamperEventType) Valid() bool {
	switch t {
	case EventPhysicalMovement, EventConnectionTampering, EventPanelAccess,
		EventVoltageFluctuation, EventLocationChange,
		EventCommunicationInterference, EventUnauthorizedAccess:
		return true
	}
	return false
}

// TamperSeverity is the ordered severity tier derived from a confidence score.
type TamperSeverity string

const (
	SeverityLow      TamperSeverity = "LOW"
	SeverityMedium   TamperSeverity = "MEDIUM"
	SeverityHigh     TamperSeverity = "HIGH"
	SeverityCritical TamperSeverity = "CRITICAL"
)

// TamperEventStatus tracks an event through its lifecycle.
// NEW -> ACKNOWLEDGED -> RESOLVED, with NEW -> RESOLVED also allowed.
// RESOLVED is terminal.
type TamperEventStatus string

const (
	StatusNew          TamperEventStatus = "NEW"
	StatusAcknowledged TamperEventStatus = "ACKNOWLEDGED"
	StatusResolved     TamperEventStatus = "RESOLVED"
)

// CanTransitionTo reports whether the status machine permits moving from s to next.
func (s TamperEventStatus) CanTransitionTo(next TamperEventStatus) bool {
	switch s {
	case StatusNew:
		return next == StatusAcknowledged || next == StatusResolved
	case StatusAcknowledged:
		return next == StatusResolved
	}
	return false
}

// ResponseType identifies the action taken in reaction to a tamper event.
type ResponseType string

const (
	ResponseNotificationSent   ResponseType = "NOTIFICATION_SENT"
	ResponseServiceSuspended   ResponseType = "SERVICE_SUSPENDED"
	ResponseSystemLockdown     ResponseType = "SYSTEM_LOCKDOWN"
	ResponseRemoteDiagnostic   ResponseType = "REMOTE_DIAGNOSTIC"
	ResponseEvidenceCollection ResponseType = "EVIDENCE_COLLECTION"
	ResponseAdminAlert         ResponseType = "ADMIN_ALERT"
	ResponseAutomaticReset     ResponseType = "AUTOMATIC_RESET"
	ResponseManualIntervention ResponseType = "MANUAL_INTERVENTION"
)

// Valid reports whether t is a known response type.
func (t ResponseType) Valid() bool {
	switch t {
	case ResponseNotificationSent, ResponseServiceSuspended, ResponseSystemLockdown,
		ResponseRemoteDiagnostic, ResponseEvidenceCollection, ResponseAdminAlert,
		ResponseAutomaticReset, ResponseManualIntervention:
		return true
	}
	return false
}

// ActivityType classifies a security log entry.
type ActivityType string

const (
	ActivitySensorReading       ActivityType = "SENSOR_READING"
	ActivityConfigurationChange ActivityType = "CONFIGURATION_CHANGE"
	ActivityAlertGenerated      ActivityType = "ALERT_GENERATED"
	ActivityAlertAcknowledged   ActivityType = "ALERT_ACKNOWLEDGED"
	ActivityAlertResolved       ActivityType = "ALERT_RESOLVED"
	ActivitySystemDiagnostic    ActivityType = "SYSTEM_DIAGNOSTIC"
	ActivitySensitivityChange   ActivityType = "SENSITIVITY_CHANGE"
	ActivityManualCheck         ActivityType = "MANUAL_CHECK"
	ActivityRemoteAccess        ActivityType = "REMOTE_ACCESS"
	ActivityFirmwareUpdate      ActivityType = "FIRMWARE_UPDATE"
)

// AlertLevel is the operator-facing sensitivity level of an alert config.
type AlertLevel string

const (
	AlertLevelLow      AlertLevel = "LOW"
	AlertLevelMedium   AlertLevel = "MEDIUM"
	AlertLevelHigh     AlertLevel = "HIGH"
	AlertLevelCritical AlertLevel = "CRITICAL"
)

// NotificationChannel identifies a delivery channel for alerts.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "EMAIL"
	ChannelSMS   NotificationChannel = "SMS"
	ChannelPush  NotificationChannel = "PUSH"
	ChannelInApp NotificationChannel = "IN_APP"
)

// InstallationStatus is the operational status of a solar installation.
type InstallationStatus string

const (
	InstallationActive         InstallationStatus = "ACTIVE"
	InstallationSuspended      InstallationStatus = "SUSPENDED"
	InstallationDecommissioned InstallationStatus = "DECOMMISSIONED"
)

// Installation represents a solar installation in the database. Ownership and
// CRUD live in another service; this worker reads installations and only
// mutates the tamper flag fields.
type Installation struct {
	ID              uuid.UUID
	Name            string
	Location        string
	Status          InstallationStatus
	TamperDetected  bool
	LastTamperCheck *time.Time
	CreatedAt       time.Time
}

// TamperEvent represents a detected tampering event in the database.
type TamperEvent struct {
	ID              uuid.UUID
	InstallationID  uuid.UUID
	EventType       TamperEventType
	Timestamp       time.Time
	Severity        TamperSeverity
	ConfidenceScore float64
	Description     string
	RawSensorData   *string
	Status          TamperEventStatus
	Resolved        bool
	ResolvedAt      *time.Time
	ResolvedBy      *string
	ResolutionNotes *string
	CreatedAt       time.Time
}

// AlertConfig holds the per-installation detection thresholds and
// notification preferences.
type AlertConfig struct {
	ID                              uuid.UUID
	InstallationID                  uuid.UUID
	AlertLevel                      AlertLevel
	NotificationChannels            []NotificationChannel
	AutoResponseEnabled             bool
	PhysicalMovementThreshold       float64
	VoltageFluctuationThreshold     float64
	ConnectionInterruptionThreshold float64
	SamplingRateSeconds             int
	CreatedAt                       time.Time
	UpdatedAt                       time.Time
}

// TamperResponse records an action taken for a tamper event. Immutable once
// written.
type TamperResponse struct {
	ID              uuid.UUID
	TamperEventID   uuid.UUID
	ResponseType    ResponseType
	ExecutedAt      time.Time
	Success         bool
	FailureReason   *string
	ExecutedBy      string
	ResponseDetails string
}

// SecurityLog is an append-only audit entry for an installation.
type SecurityLog struct {
	ID             uuid.UUID
	InstallationID uuid.UUID
	Timestamp      time.Time
	ActivityType   ActivityType
	Details        string
	IPAddress      *string
	Location       *string
	UserID         string
}

// MonitoringStatus is the per-installation monitoring toggle.
type MonitoringStatus struct {
	ID             uuid.UUID
	InstallationID uuid.UUID
	Monitoring     bool
	UpdatedAt      time.Time
}

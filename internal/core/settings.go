package core

import (
	"errors"
	"fmt"
	"strings"
)

// Granularity is the time bucketing chosen in the configuration panel.
type Granularity string

// NotificationPreference is how reports reach stakeholders.
type NotificationPreference string

const (
	Monthly   Granularity = "Monthly"
	Quarterly Granularity = "Quarterly"
	Yearly    Granularity = "Yearly"

	NotifyEmail NotificationPreference = "Email"
	NotifySMS   NotificationPreference = "SMS"
	NotifyNone  NotificationPreference = "None"
)

const (
	MinRetentionMonths     = 1
	MaxRetentionMonths     = 12
	MinReportFrequencyDays = 1
	MaxReportFrequencyDays = 30
)

var (
	ErrInvalidGranularity  = errors.New("invalid granularity")
	ErrInvalidRetention    = errors.New("invalid retention period")
	ErrInvalidFrequency    = errors.New("invalid report frequency")
	ErrInvalidNotification = errors.New("invalid notification preference")
)

// Settings are the dashboard configuration controls. They are forwarded with
// the dataset; the calculator does not read them.
type Settings struct {
	Granularity         Granularity            `yaml:"granularity" json:"granularity"`
	RetentionMonths     int                    `yaml:"retention_months" json:"retention_months"`
	ReportFrequencyDays int                    `yaml:"report_frequency_days" json:"report_frequency_days"`
	Notification        NotificationPreference `yaml:"notification" json:"notification"`
}

// DefaultSettings mirrors the initial position of every control.
func DefaultSettings() Settings {
	return Settings{
		Granularity:         Monthly,
		RetentionMonths:     6,
		ReportFrequencyDays: 7,
		Notification:        NotifyEmail,
	}
}

// Granularities lists the selectable options in display order.
func Granularities() []Granularity {
	return []Granularity{Monthly, Quarterly, Yearly}
}

// NotificationPreferences lists the selectable options in display order.
func NotificationPreferences() []NotificationPreference {
	return []NotificationPreference{NotifyEmail, NotifySMS, NotifyNone}
}

// ParseGranularity matches an option case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	for _, g := range Granularities() {
		if strings.EqualFold(strings.TrimSpace(s), string(g)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
}

// ParseNotificationPreference matches an option case-insensitively.
func ParseNotificationPreference(s string) (NotificationPreference, error) {
	for _, n := range NotificationPreferences() {
		if strings.EqualFold(strings.TrimSpace(s), string(n)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidNotification, s)
}

func (s Settings) Validate() error {
	if _, err := ParseGranularity(string(s.Granularity)); err != nil {
		return err
	}
	if s.RetentionMonths < MinRetentionMonths || s.RetentionMonths > MaxRetentionMonths {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidRetention, s.RetentionMonths, MinRetentionMonths, MaxRetentionMonths)
	}
	if s.ReportFrequencyDays < MinReportFrequencyDays || s.ReportFrequencyDays > MaxReportFrequencyDays {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidFrequency, s.ReportFrequencyDays, MinReportFrequencyDays, MaxReportFrequencyDays)
	}
	if _, err := ParseNotificationPreference(string(s.Notification)); err != nil {
		return err
	}
	return nil
}

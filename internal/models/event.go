// Package models provides the EventBridge event shapes exchanged with Control Tower and the superwerker automation.
package models

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const (
	// DetailTypeCloudTrail is the detail type of Control Tower lifecycle events.
	DetailTypeCloudTrail = "AWS Service Event via CloudTrail"
	SourceControlTower   = "aws.controltower"
	// SourceLandingZone is the source of synthetic lifecycle events. PutEvents rejects
	// sources in the aws. namespace.
	SourceLandingZone = "superwerker.landingzone"

	EventNameSetupLandingZone  = "SetupLandingZone"
	EventNameUpdateLandingZone = "UpdateLandingZone"

	LandingZoneStateSucceeded = "SUCCEEDED"
	LandingZoneStateFailed    = "FAILED"

	// Source and DetailType of the events put by superwerker itself.
	SourceSuperwerker     = "superwerker"
	DetailTypeSuperwerker = "superwerker-event"

	EventNameLandingZoneFinished = "LandingZoneSetupOrUpdateFinished"
)

// LifecycleSource reports whether source delivers landing zone lifecycle events.
func LifecycleSource(source string) bool {
	return source == SourceControlTower || source == SourceLandingZone
}

// Event represents an AWS EventBridge event.
type Event struct {
	ID         string          `json:"id"`
	Time       time.Time       `json:"time"`
	Region     string          `json:"region"`
	Source     string          `json:"source"`
	Account    string          `json:"account"`
	Version    string          `json:"version"`
	Detail     json.RawMessage `json:"detail"`
	DetailType string          `json:"detail-type"`
	Resources  []string        `json:"resources"`
}

// Account is a core account created by the landing zone.
type Account struct {
	AccountName string `json:"accountName"`
	AccountID   string `json:"accountId"`
}

type LandingZoneStatus struct {
	State    string    `json:"state"`
	Message  string    `json:"message,omitempty"`
	Accounts []Account `json:"accounts,omitempty"`
}

type ServiceEventDetails struct {
	SetupLandingZoneStatus *LandingZoneStatus `json:"setupLandingZoneStatus,omitempty"`
}

// LifecycleDetail is the detail of a Control Tower lifecycle event.
type LifecycleDetail struct {
	EventName           string              `json:"eventName"`
	ServiceEventDetails ServiceEventDetails `json:"serviceEventDetails"`
}

// Succeeded reports whether the landing zone setup completed.
func (d LifecycleDetail) Succeeded() bool {
	s := d.ServiceEventDetails.SetupLandingZoneStatus
	return s != nil && s.State == LandingZoneStateSucceeded
}

// Accounts returns the accounts reported with the landing zone status.
func (d LifecycleDetail) Accounts() []Account {
	if s := d.ServiceEventDetails.SetupLandingZoneStatus; s != nil {
		return s.Accounts
	}
	return nil
}

// LifecycleDetail decodes the event detail as a Control Tower lifecycle detail.
func (e Event) LifecycleDetail() (LifecycleDetail, error) {
	var d LifecycleDetail
	if len(e.Detail) == 0 {
		return d, errors.New("event has no detail")
	}
	if err := json.Unmarshal(e.Detail, &d); err != nil {
		return d, errors.Wrap(err, "failed to decode lifecycle detail")
	}
	return d, nil
}

// NewLifecycleDetail returns the detail of a SetupLandingZone event in the given state.
func NewLifecycleDetail(state string, accounts ...Account) LifecycleDetail {
	return LifecycleDetail{
		EventName: EventNameSetupLandingZone,
		ServiceEventDetails: ServiceEventDetails{
			SetupLandingZoneStatus: &LandingZoneStatus{State: state, Accounts: accounts},
		},
	}
}

// FinishedDetail is the detail of the event put once the landing zone is ready.
type FinishedDetail struct {
	EventName string `json:"eventName"`
}

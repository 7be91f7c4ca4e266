package controltower

import (
	"strings"

	"github.com/superwerker/superwerker/internal/config"
)

// Manifest is the landing zone manifest accepted by CreateLandingZone, encoded as a Smithy document.
type Manifest struct {
	GovernedRegions       []string              `document:"governedRegions"`
	OrganizationStructure organizationStructure `document:"organizationStructure"`
	CentralizedLogging    centralizedLogging    `document:"centralizedLogging"`
	SecurityRoles         accountRef            `document:"securityRoles"`
	AccessManagement      enabled               `document:"accessManagement"`
}

type organizationStructure struct {
	Security ouRef `document:"security"`
	Sandbox  ouRef `document:"sandbox"`
}

type ouRef struct {
	Name string `document:"name"`
}

type accountRef struct {
	AccountID string `document:"accountId"`
}

type enabled struct {
	Enabled bool `document:"enabled"`
}

type centralizedLogging struct {
	AccountID      string        `document:"accountId"`
	Configurations loggingConfig `document:"configurations"`
	Enabled        bool          `document:"enabled"`
}

type loggingConfig struct {
	LoggingBucket       retention `document:"loggingBucket"`
	AccessLoggingBucket retention `document:"accessLoggingBucket"`
	KMSKeyARN           string    `document:"kmsKeyArn,omitempty"`
}

type retention struct {
	RetentionDays int `document:"retentionDays"`
}

// Settings are read from the SSM parameters written during preparation.
type Settings struct {
	Version                string
	LogArchiveAccountID    string
	AuditAccountID         string
	KMSKeyARN              string
	Regions                []string
	SecurityOUName         string
	SandboxOUName          string
	LoggingRetentionDays   int
	AccessLogRetentionDays int
}

// NewManifest builds the manifest of a superwerker landing zone. Unset settings fall back
// to the installation defaults.
func NewManifest(s Settings) Manifest {
	regions := s.Regions
	if len(regions) == 0 {
		regions = config.DefaultControlTowerRegions
	}
	return Manifest{
		GovernedRegions: regions,
		OrganizationStructure: organizationStructure{
			Security: ouRef{Name: orDefault(s.SecurityOUName, config.DefaultSecurityOUName)},
			Sandbox:  ouRef{Name: orDefault(s.SandboxOUName, config.DefaultSandboxOUName)},
		},
		CentralizedLogging: centralizedLogging{
			AccountID: s.LogArchiveAccountID,
			Configurations: loggingConfig{
				LoggingBucket:       retention{RetentionDays: orDefault(s.LoggingRetentionDays, config.DefaultLoggingRetentionDays)},
				AccessLoggingBucket: retention{RetentionDays: orDefault(s.AccessLogRetentionDays, config.DefaultAccessLogRetentionDays)},
				KMSKeyARN:           s.KMSKeyARN,
			},
			Enabled: true,
		},
		SecurityRoles:    accountRef{AccountID: s.AuditAccountID},
		AccessManagement: enabled{Enabled: true},
	}
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// ParseRegions splits a comma separated region list.
func ParseRegions(value string) []string {
	var regions []string
	for _, r := range strings.Split(value, ",") {
		if r = strings.TrimSpace(r); r != "" {
			regions = append(regions, r)
		}
	}
	return regions
}

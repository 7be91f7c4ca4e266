// Package config provides a centralized entrypoint for the application parameters.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"go.yaml.in/yaml/v3"
)

const (
	// ProtocolResponseURL reports custom-resource results to the pre-signed ResponseURL.
	ProtocolResponseURL = "response-url"
	// ProtocolProvider returns custom-resource results to the CDK provider framework.
	ProtocolProvider = "provider"
)

var (
	// Global is a struct that contains the global configuration.
	Global      global
	// Lambda is a struct that contains the configuration for the lambda mode.
	Lambda      lambda
	// Bootstrap is a struct that contains the configuration for the bootstrap-regions command.
	Bootstrap   bootstrap
	// Console is a struct that contains the configuration for the console-url command.
	Console     console
	// Docs is a struct that contains the configuration for the docs command.
	Docs        docs
	// LandingZone is a struct that contains the configuration for the landing-zone-event command.
	LandingZone landingZone
)

type global struct {
	// Region overrides the AWS region of the default configuration chain.
	Region string `yaml:"region,omitempty"`
	// Logging is a struct that contains the logging configuration.
	Logging struct {
		// Verbosity is the verbosity level of the application. It represents slog levels.
		Verbosity   int  `yaml:"verbosity,omitempty"`
		// CallerTrace is a flag that enables the caller trace in the logger.
		CallerTrace bool `yaml:"callerTrace,omitempty"`
	} `yaml:"logging,omitempty"`
}

type lambda struct {
	// Protocol selects how custom-resource results reach CloudFormation.
	Protocol string `yaml:"protocol,omitempty" default:"response-url"`
	// Handler names the function to serve when no argument is given.
	Handler  string `yaml:"handler,omitempty"`
}

type bootstrap struct {
	Template  string        `yaml:"template,omitempty" default:"cdk-bootstrap.yaml"`
	StackName string        `yaml:"stackName,omitempty" default:"superwerker-cdk-bootstrap"`
	// Regions limits the deployment; empty means every enabled region.
	Regions   []string      `yaml:"regions,omitempty"`
	// Rate is the number of region deployments started per second.
	Rate      float64       `yaml:"rate,omitempty" default:"1"`
	Timeout   time.Duration `yaml:"timeout,omitempty" default:"15m"`
}

type console struct {
	Destination     string        `yaml:"destination,omitempty" default:"https://console.aws.amazon.com/"`
	Issuer          string        `yaml:"issuer,omitempty" default:"superwerker"`
	SessionDuration time.Duration `yaml:"sessionDuration,omitempty" default:"12h"`
}

type docs struct {
	Templates []string `yaml:"templates,omitempty" default:"[\"templates/*.yaml\"]"`
	Output    string   `yaml:"output,omitempty" default:"docs/parameters"`
}

type landingZone struct {
	EventBus string `yaml:"eventBus,omitempty" default:"default"`
	Source   string `yaml:"source,omitempty" default:"superwerker.landingzone"`
	State    string `yaml:"state,omitempty" default:"SUCCEEDED"`
}

// SetDefaults sets the default values for the configuration.
func SetDefaults() error {
	return errors.Join(
		defaults.Set(&Global),
		defaults.Set(&Lambda),
		defaults.Set(&Bootstrap),
		defaults.Set(&Console),
		defaults.Set(&Docs),
		defaults.Set(&LandingZone),
	)
}

// LoadFromFile loads the configuration from a file.
func LoadFromFile(path string) error {
	if len(path) == 0 {
		return nil
	}
	fstat, err := os.Stat(path)
	if err != nil {
		return nil //nolint:nilerr // If the file does not exist, we ignore it.
	}
	if fstat.IsDir() {
		return fmt.Errorf("configuration file %s is a directory", path)
	}
	if !fstat.Mode().IsRegular() {
		return fmt.Errorf("configuration file %s is not a regular file", path)
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}
	type all struct {
		Global      global      `yaml:"global,omitempty"`
		Lambda      lambda      `yaml:"lambda,omitempty"`
		Bootstrap   bootstrap   `yaml:"bootstrap,omitempty"`
		Console     console     `yaml:"console,omitempty"`
		Docs        docs        `yaml:"docs,omitempty"`
		LandingZone landingZone `yaml:"landingZone,omitempty"`
	}
	var a all
	if err = yaml.Unmarshal(content, &a); err != nil {
		return fmt.Errorf("failed to unmarshal configuration file %s: %w", path, err)
	}
	Global = a.Global
	Lambda = a.Lambda
	Bootstrap = a.Bootstrap
	Console = a.Console
	Docs = a.Docs
	LandingZone = a.LandingZone

	return nil
}

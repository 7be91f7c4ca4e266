package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/helpers"
)

// Environment holds the variables the Lambda functions are deployed with.
type Environment struct {
	Region string `env:"AWS_REGION"`

	BillingRoleARN      string `env:"AWSAPILIB_BILLING_ROLE_ARN"`
	RoleARN             string `env:"AWSAPILIB_ROLE_ARN"`
	ControlTowerRoleARN string `env:"AWSAPILIB_CONTROL_TOWER_ROLE_ARN"`

	TopicARN                string `env:"TOPIC_ARN"`
	Domain                  string `env:"SUPERWERKER_DOMAIN"`
	AccountFactoryAccountID string `env:"ACCOUNT_FACTORY_ACCOUNT_ID"`
	EmailBucket             string `env:"EMAIL_BUCKET"`
	EmailBucketARN          string `env:"EMAIL_BUCKET_ARN"`
	SignalURL               string `env:"SIGNAL_URL"`

	LegacyStackName string `env:"StackName"`
	StackName       string `env:"STACK_NAME"`
}

// LoadEnvironment reads the Environment from the process environment.
func LoadEnvironment() (Environment, error) {
	e, err := env.ParseAs[Environment]()
	if err != nil {
		return Environment{}, errors.Wrap(err, "failed to parse environment")
	}
	return e, nil
}

// LoadEnvironmentFrom reads the Environment from vars instead of the process environment.
func LoadEnvironmentFrom(vars map[string]string) (Environment, error) {
	e, err := env.ParseAsWithOptions[Environment](env.Options{Environment: vars})
	if err != nil {
		return Environment{}, errors.Wrap(err, "failed to parse environment")
	}
	return e, nil
}

// BudgetStackName returns the name of the stack holding the budget alarm.
func (e Environment) BudgetStackName() string {
	return helpers.FirstNonEmpty(e.StackName, e.LegacyStackName)
}

// MissingVariableError is returned when a handler requires an unset variable.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return "missing environment variable " + e.Name
}

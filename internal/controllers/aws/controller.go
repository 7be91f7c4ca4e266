// Package aws provides the Controller struct that builds AWS service clients sharing one
// configuration, context and logger, optionally under an assumed role.
package aws

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/account"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/controltower"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/securityhub"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/taxsettings"
	"github.com/aws/smithy-go/logging"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/helpers"
)

// DefaultSessionName is used when assuming roles.
const DefaultSessionName = "superwerker"

// Controller builds AWS service clients from a shared configuration.
type Controller struct {
	ctx    context.Context
	logger *slog.Logger

	config *aws.Config
	region string
}

// Option defines a function type used to configure an instance of the Controller struct.
type Option func(*Controller)

// NewController initializes a Controller, loading the default AWS configuration chain unless
// a configuration is supplied.
func NewController(opts ...Option) (*Controller, error) {
	_inst := &Controller{}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.logger == nil {
		_inst.logger = helpers.NewNoopLogger()
	}
	_inst.logger = _inst.logger.With("controller", "aws")
	if _inst.ctx == nil {
		_inst.ctx = context.Background()
	}
	if _inst.config == nil {
		_inst.logger.Debug("loading default AWS configuration...")
		var loadOpts []func(*config.LoadOptions) error
		if _inst.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(_inst.region))
		}
		cfg, err := config.LoadDefaultConfig(_inst.ctx, loadOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS configuration")
		}
		cfg.Logger = newAWSLogger(_inst.logger)
		_inst.config = &cfg
	}
	return _inst, nil
}

// Config returns a copy of the underlying AWS configuration.
func (c *Controller) Config() aws.Config {
	return c.config.Copy()
}

// Region returns the configured region.
func (c *Controller) Region() string {
	return c.config.Region
}

// ForRegion returns a Controller whose clients target region.
func (c *Controller) ForRegion(region string) *Controller {
	cfg := c.config.Copy()
	cfg.Region = region
	return &Controller{ctx: c.ctx, logger: c.logger.With("region", region), config: &cfg, region: region}
}

// AssumeRole returns a Controller whose clients use temporary credentials of roleARN.
// An empty roleARN returns the receiver.
func (c *Controller) AssumeRole(roleARN string) *Controller {
	if roleARN == "" {
		return c
	}
	cfg := c.config.Copy()
	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(*c.config), roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = DefaultSessionName
	})
	cfg.Credentials = aws.NewCredentialsCache(provider)
	c.logger.Debug("using assumed role credentials", slog.String("roleArn", roleARN))
	return &Controller{ctx: c.ctx, logger: c.logger.With("roleArn", roleARN), config: &cfg, region: c.region}
}

func (c *Controller) Account() *account.Client {
	return account.NewFromConfig(*c.config)
}

func (c *Controller) CloudFormation() *cloudformation.Client {
	return cloudformation.NewFromConfig(*c.config)
}

func (c *Controller) CloudWatch() *cloudwatch.Client {
	return cloudwatch.NewFromConfig(*c.config)
}

func (c *Controller) ControlTower() *controltower.Client {
	return controltower.NewFromConfig(*c.config)
}

// CostExplorer returns a client for the global Cost Explorer endpoint in us-east-1.
func (c *Controller) CostExplorer() *costexplorer.Client {
	return costexplorer.NewFromConfig(*c.config, func(o *costexplorer.Options) {
		o.Region = "us-east-1"
	})
}

func (c *Controller) EventBridge() *eventbridge.Client {
	return eventbridge.NewFromConfig(*c.config)
}

func (c *Controller) Organizations() *organizations.Client {
	return organizations.NewFromConfig(*c.config)
}

func (c *Controller) S3() *s3.Client {
	return s3.NewFromConfig(*c.config)
}

func (c *Controller) SecurityHub() *securityhub.Client {
	return securityhub.NewFromConfig(*c.config)
}

func (c *Controller) SNS() *sns.Client {
	return sns.NewFromConfig(*c.config)
}

func (c *Controller) SSM() *ssm.Client {
	return ssm.NewFromConfig(*c.config)
}

func (c *Controller) STS() *sts.Client {
	return sts.NewFromConfig(*c.config)
}

// TaxSettings returns a client for the tax settings endpoint in us-east-1.
func (c *Controller) TaxSettings() *taxsettings.Client {
	return taxsettings.NewFromConfig(*c.config, func(o *taxsettings.Options) {
		o.Region = "us-east-1"
	})
}

type awsLogger struct {
	logger *slog.Logger
}

func newAWSLogger(logger *slog.Logger) *awsLogger {
	return &awsLogger{logger}
}

func (a *awsLogger) Logf(classification logging.Classification, format string, args ...any) {
	a.logger.Debug(fmt.Sprintf("[%v] %s", classification, fmt.Sprintf(format, args...)))
}

// Package regions deploys the bootstrap stack into every region superwerker supports.
package regions

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/superwerker/superwerker/internal/helpers"
)

// DefaultRegions receive the bootstrap stack when no regions are configured.
var DefaultRegions = []string{
	"ap-northeast-1",
	"ap-northeast-2",
	"ap-south-1",
	"ap-southeast-1",
	"ap-southeast-2",
	"ca-central-1",
	"eu-central-1",
	"eu-central-2",
	"eu-north-1",
	"eu-west-1",
	"eu-west-2",
	"eu-west-3",
	"sa-east-1",
	"us-east-1",
	"us-east-2",
	"us-west-2",
}

const noUpdateMsg = "No updates are to be performed"

type API interface {
	cloudformation.DescribeStacksAPIClient
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// DeployError reports the region a deployment failed in.
type DeployError struct {
	Region string
	Err    error
}

func (e *DeployError) Error() string {
	return "deployment to " + e.Region + " failed: " + e.Err.Error()
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

type Deployer struct {
	clients   func(region string) API
	stackName string
	template  string
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger
}

type Option func(*Deployer)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Deployer) {
		d.logger = logger.With("component", "regions")
	}
}

// WithRate limits how many region deployments start per second.
func WithRate(perSecond float64) Option {
	return func(d *Deployer) {
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithTimeout bounds the wait for a stack operation in each region.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Deployer) {
		d.timeout = timeout
	}
}

func New(clients func(region string) API, stackName, template string, opts ...Option) *Deployer {
	_inst := &Deployer{
		clients:   clients,
		stackName: stackName,
		template:  template,
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		timeout:   15 * time.Minute,
		logger:    helpers.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// Deploy creates or updates the stack in every region and waits for completion.
func (d *Deployer) Deploy(ctx context.Context, regions []string) error {
	if len(regions) == 0 {
		regions = DefaultRegions
	}
	g, ctx := errgroup.WithContext(ctx)
	var waitErr error
	for _, region := range regions {
		if waitErr = d.limiter.Wait(ctx); waitErr != nil {
			break
		}
		g.Go(func() error {
			if err := d.DeployRegion(ctx, region); err != nil {
				return &DeployError{Region: region, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Wrap(waitErr, "deployment interrupted")
}

func (d *Deployer) exists(ctx context.Context, client API) (bool, error) {
	_, err := client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(d.stackName)})
	if helpers.HasErrorMessage(err, "does not exist") {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to describe stack %s", d.stackName)
	}
	return true, nil
}

// DeployRegion creates or updates the stack in a single region.
func (d *Deployer) DeployRegion(ctx context.Context, region string) error {
	logger := d.logger.With(slog.String("region", region), slog.String("stack", d.stackName))
	client := d.clients(region)
	describe := &cloudformation.DescribeStacksInput{StackName: aws.String(d.stackName)}

	exists, err := d.exists(ctx, client)
	if err != nil {
		return err
	}

	if !exists {
		logger.Info("creating stack...")
		if _, err = client.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(d.stackName),
			TemplateBody: aws.String(d.template),
		}); err != nil {
			return errors.Wrap(err, "failed to create stack")
		}
		err = cloudformation.NewStackCreateCompleteWaiter(client).Wait(ctx, describe, d.timeout)
		return errors.Wrap(err, "stack creation did not complete")
	}

	logger.Info("updating stack...")
	_, err = client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(d.stackName),
		TemplateBody: aws.String(d.template),
	})
	if helpers.HasErrorMessage(err, noUpdateMsg) {
		logger.Info("stack is up to date")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to update stack")
	}
	err = cloudformation.NewStackUpdateCompleteWaiter(client).Wait(ctx, describe, d.timeout)
	return errors.Wrap(err, "stack update did not complete")
}

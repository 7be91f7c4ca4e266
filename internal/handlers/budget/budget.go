// Package budget keeps the budget alarm limit at the average cost of the last three months.
package budget

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/helpers"
)

const (
	// MinimumLimit is the lowest budget limit in USD.
	MinimumLimit = 10
	// ParameterKey is the budget stack parameter holding the limit.
	ParameterKey = "BudgetLimitInUSD"

	months      = 3
	metric      = "UnblendedCost"
	dateLayout  = "2006-01-02"
	noUpdateMsg = "No updates are to be performed"
)

// CostAPI is the Cost Explorer subset used to read past spend.
type CostAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// StackAPI is the CloudFormation subset used to update the budget stack parameter.
type StackAPI interface {
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// Window returns the first days of the month three months before now and of the current month.
func Window(now time.Time) (start, end time.Time) {
	end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, -months, 0), end
}

// AverageCost returns the truncated monthly average of the results, never below MinimumLimit.
func AverageCost(results []cetypes.ResultByTime) (int, error) {
	var total float64
	for _, r := range results {
		cost, ok := r.Total[metric]
		if !ok {
			continue
		}
		amount, err := strconv.ParseFloat(aws.ToString(cost.Amount), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid cost amount %q", aws.ToString(cost.Amount))
		}
		total += amount
	}
	return max(int(total/months), MinimumLimit), nil
}

// Updater keeps the budget limit of the budget stack at the recent monthly average cost.
type Updater struct {
	costs     CostAPI
	stacks    StackAPI
	stackName string
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Updater)

func WithLogger(logger *slog.Logger) Option {
	return func(u *Updater) {
		u.logger = logger.With("component", "budget")
	}
}

// WithClock replaces the time source of the cost window.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) {
		u.now = now
	}
}

// New returns an Updater for the stack named stackName.
func New(costs CostAPI, stacks StackAPI, stackName string, opts ...Option) *Updater {
	_inst := &Updater{
		costs:     costs,
		stacks:    stacks,
		stackName: stackName,
		now:       time.Now,
		logger:    helpers.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// Update recomputes the budget limit and applies it to the budget stack.
func (u *Updater) Update(ctx context.Context) error {
	start, end := Window(u.now())
	out, err := u.costs.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(dateLayout)),
			End:   aws.String(end.Format(dateLayout)),
		},
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{metric},
	})
	if err != nil {
		return errors.Wrap(err, "failed to get cost and usage")
	}

	limit, err := AverageCost(out.ResultsByTime)
	if err != nil {
		return err
	}
	logger := u.logger.With(
		slog.String("stack", u.stackName),
		slog.String("start", start.Format(dateLayout)),
		slog.String("end", end.Format(dateLayout)),
		slog.Int("budget", limit))
	logger.Info("updating budget limit...")

	_, err = u.stacks.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:           aws.String(u.stackName),
		UsePreviousTemplate: aws.Bool(true),
		Capabilities:        []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam},
		Parameters: []cfntypes.Parameter{{
			ParameterKey:   aws.String(ParameterKey),
			ParameterValue: aws.String(strconv.Itoa(limit)),
		}},
	})
	if helpers.HasErrorMessage(err, noUpdateMsg) {
		logger.Info("budget limit unchanged")
		return nil
	}
	return errors.Wrapf(err, "failed to update stack %s", u.stackName)
}

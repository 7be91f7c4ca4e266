package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superwerker/superwerker/internal/handlers/budget"
)

func results(amounts ...string) []cetypes.ResultByTime {
	out := make([]cetypes.ResultByTime, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, cetypes.ResultByTime{
			Total: map[string]cetypes.MetricValue{"UnblendedCost": {Amount: aws.String(a), Unit: aws.String("USD")}},
		})
	}
	return out
}

type fakeCosts struct {
	input   *costexplorer.GetCostAndUsageInput
	results []cetypes.ResultByTime
}

func (f *fakeCosts) GetCostAndUsage(_ context.Context, params *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	f.input = params
	return &costexplorer.GetCostAndUsageOutput{ResultsByTime: f.results}, nil
}

type fakeStacks struct {
	input *cloudformation.UpdateStackInput
	err   error
}

func (f *fakeStacks) UpdateStack(_ context.Context, params *cloudformation.UpdateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.input = params
	return &cloudformation.UpdateStackOutput{}, f.err
}

func TestWindow(t *testing.T) {
	testCases := []struct {
		Name          string
		Now           time.Time
		ExpectedStart string
		ExpectedEnd   string
	}{
		{Name: "mid year", Now: time.Date(2024, time.June, 17, 9, 30, 0, 0, time.UTC), ExpectedStart: "2024-03-01", ExpectedEnd: "2024-06-01"},
		{Name: "across new year", Now: time.Date(2024, time.February, 29, 23, 0, 0, 0, time.UTC), ExpectedStart: "2023-11-01", ExpectedEnd: "2024-02-01"},
		{Name: "first of month", Now: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), ExpectedStart: "2023-10-01", ExpectedEnd: "2024-01-01"},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			start, end := budget.Window(tc.Now)
			assert.Equal(t, tc.ExpectedStart, start.Format("2006-01-02"))
			assert.Equal(t, tc.ExpectedEnd, end.Format("2006-01-02"))
		})
	}
}

func TestAverageCost(t *testing.T) {
	testCases := []struct {
		Name      string
		Results   []cetypes.ResultByTime
		Expected  int
		ExpectErr bool
	}{
		{Name: "truncated average", Results: results("100.0", "200.5", "300.9"), Expected: 200},
		{Name: "below minimum", Results: results("1.5", "2.5", "3.5"), Expected: budget.MinimumLimit},
		{Name: "fewer months", Results: results("90"), Expected: 30},
		{Name: "no results", Expected: budget.MinimumLimit},
		{Name: "invalid amount", Results: results("abc"), ExpectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			avg, err := budget.AverageCost(tc.Results)
			if tc.ExpectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Expected, avg)
		})
	}
}

func TestUpdate(t *testing.T) {
	testCases := []struct {
		Name      string
		StackErr  error
		ExpectErr bool
	}{
		{Name: "updates stack"},
		{Name: "no updates", StackErr: &smithy.GenericAPIError{Code: "ValidationError", Message: "No updates are to be performed."}},
		{Name: "stack failure", StackErr: &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack [budget] does not exist"}, ExpectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			costs := &fakeCosts{results: results("30", "60", "90")}
			stacks := &fakeStacks{err: tc.StackErr}
			u := budget.New(costs, stacks, "superwerker-Budget", budget.WithClock(func() time.Time {
				return time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
			}))

			err := u.Update(context.Background())
			if tc.ExpectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, "2024-02-01", aws.ToString(costs.input.TimePeriod.Start))
			assert.Equal(t, "2024-05-01", aws.ToString(costs.input.TimePeriod.End))
			assert.Equal(t, cetypes.GranularityMonthly, costs.input.Granularity)
			assert.Equal(t, []string{"UnblendedCost"}, costs.input.Metrics)

			assert.Equal(t, "superwerker-Budget", aws.ToString(stacks.input.StackName))
			assert.True(t, aws.ToBool(stacks.input.UsePreviousTemplate))
			assert.Equal(t, []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam}, stacks.input.Capabilities)
			require.Len(t, stacks.input.Parameters, 1)
			assert.Equal(t, budget.ParameterKey, aws.ToString(stacks.input.Parameters[0].ParameterKey))
			assert.Equal(t, "60", aws.ToString(stacks.input.Parameters[0].ParameterValue))
		})
	}
}

package runtime_test

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superwerker/superwerker/internal/config"
	awsctl "github.com/superwerker/superwerker/internal/controllers/aws"
	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/runtime"
)

var fullEnvironment = config.Environment{
	Region:         "eu-west-1",
	TopicARN:       "arn:aws:sns:eu-west-1:123456789012:notifications",
	Domain:         "aws.example.com",
	EmailBucket:    "superwerker-rootmail",
	EmailBucketARN: "arn:aws:s3:::superwerker-rootmail",
	SignalURL:      "https://signal.example.com",
	StackName:      "superwerker-Budget",
}

func newController(t *testing.T) *awsctl.Controller {
	t.Helper()
	c, err := awsctl.NewController(awsctl.WithConfig(aws.Config{Region: "eu-west-1", Credentials: aws.AnonymousCredentials{}}))
	require.NoError(t, err)
	return c
}

func TestHandlers(t *testing.T) {
	r := runtime.NewRuntime(newController(t), fullEnvironment)
	require.Len(t, runtime.Names(), 19)

	for _, name := range runtime.Names() {
		t.Run(name, func(t *testing.T) {
			h, err := r.Handler(name)
			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestUnknownHandler(t *testing.T) {
	r := runtime.NewRuntime(newController(t), fullEnvironment)
	_, err := r.Handler("does-not-exist")

	var unknown *runtime.UnknownHandlerError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "does-not-exist", unknown.Name)
}

func TestMissingEnvironment(t *testing.T) {
	testCases := []struct {
		Name             string
		Handler          string
		Clear            func(e *config.Environment)
		ExpectedVariable string
	}{
		{Name: "notification topic", Handler: runtime.NotificationOpsItemCreated, Clear: func(e *config.Environment) { e.TopicARN = "" }, ExpectedVariable: "TOPIC_ARN"},
		{Name: "budget stack", Handler: runtime.BudgetUpdater, Clear: func(e *config.Environment) { e.StackName = "" }, ExpectedVariable: "STACK_NAME"},
		{Name: "dashboard domain", Handler: runtime.LivingDocsDashboard, Clear: func(e *config.Environment) { e.Domain = "" }, ExpectedVariable: "SUPERWERKER_DOMAIN"},
		{Name: "rootmail bucket", Handler: runtime.RootMailOpsSanta, Clear: func(e *config.Environment) { e.EmailBucket = "" }, ExpectedVariable: "EMAIL_BUCKET"},
		{Name: "bootstrap signal", Handler: runtime.SuperwerkerBootstrap, Clear: func(e *config.Environment) { e.SignalURL = "" }, ExpectedVariable: "SIGNAL_URL"},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			env := fullEnvironment
			tc.Clear(&env)
			_, err := runtime.NewRuntime(newController(t), env).Handler(tc.Handler)

			var missing *config.MissingVariableError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tc.ExpectedVariable, missing.Name)
		})
	}
}

func TestLegacyBudgetStackName(t *testing.T) {
	env := fullEnvironment
	env.StackName = ""
	env.LegacyStackName = "superwerker-Budget"

	h, err := runtime.NewRuntime(newController(t), env).Handler(runtime.BudgetUpdater)
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestProviderProtocol(t *testing.T) {
	r := runtime.NewRuntime(newController(t), fullEnvironment, runtime.WithProtocol(config.ProtocolProvider))
	h, err := r.Handler(runtime.GenerateMailAddress)
	require.NoError(t, err)

	fn, ok := h.(func(context.Context, cfn.Event) (any, error))
	require.True(t, ok)

	out, err := fn(context.Background(), cfn.Event{
		RequestType:        cfn.RequestCreate,
		ResourceProperties: map[string]any{"Domain": "aws.example.com", "Name": "Audit"},
	})
	require.NoError(t, err)
	resp, ok := out.(customresource.Response)
	require.True(t, ok)
	assert.Equal(t, "Audit@aws.example.com", resp.PhysicalResourceID)
	assert.Contains(t, resp.Data, "Email")
}

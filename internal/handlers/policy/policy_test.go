package policy_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/handlers/policy"
	"github.com/superwerker/superwerker/internal/organizations"
	"github.com/superwerker/superwerker/internal/organizations/orgstest"
	"github.com/superwerker/superwerker/internal/retry"
)

const scpContent = `{"Version":"2012-10-17","Statement":[{"Effect":"Deny","Action":"*","Resource":"*"}]}`

func newHandler(fake *orgstest.Fake, policyType types.PolicyType, opts ...policy.Option) *policy.Handler {
	orgs := organizations.NewManager(fake, organizations.WithRetrier(retry.New(
		retry.WithSchedule(0),
		retry.WithJitter(func() time.Duration { return 0 }))))
	return policy.New(orgs, policyType, opts...)
}

func dispatch(t *testing.T, h customresource.Handler, event cfn.Event) (customresource.Response, error) {
	t.Helper()
	if event.LogicalResourceID == "" {
		event.LogicalResourceID = "SCPBaseline"
	}
	return customresource.Dispatch(context.Background(), h, event, nil)
}

func TestCreateThenUpdateKeepsSinglePolicy(t *testing.T) {
	for _, name := range []string{"superwerker", "superwerker-root"} {
		t.Run(name, func(t *testing.T) {
			fake := orgstest.NewFake()
			h := newHandler(fake, types.PolicyTypeServiceControlPolicy, policy.WithDefaultName(name))
			props := map[string]any{"Policy": scpContent, "Attach": "true"}

			created, err := dispatch(t, h, cfn.Event{RequestType: cfn.RequestCreate, ResourceProperties: props})
			require.NoError(t, err)

			updated, err := dispatch(t, h, cfn.Event{
				RequestType:        cfn.RequestUpdate,
				PhysicalResourceID: created.PhysicalResourceID,
				ResourceProperties: props,
			})
			require.NoError(t, err)

			policies := fake.PoliciesNamed(name)
			require.Len(t, policies, 1)
			assert.Equal(t, updated.PhysicalResourceID, policies[0].ID)
			assert.Equal(t, scpContent, policies[0].Content)
			assert.True(t, fake.IsAttached(policies[0].ID))
		})
	}
}

func TestCreate(t *testing.T) {
	testCases := []struct {
		Name           string
		Props          map[string]any
		Existing       bool
		ExistingAttach bool
		ExpectAttached bool
		ExpectErr      bool
	}{
		{Name: "create and attach", Props: map[string]any{"Policy": "{}", "Attach": "true"}, ExpectAttached: true},
		{Name: "create detached", Props: map[string]any{"Policy": "{}", "Attach": "false"}},
		{Name: "existing policy is reused", Props: map[string]any{"Policy": "{}", "Attach": "true"}, Existing: true, ExistingAttach: true, ExpectAttached: true},
		{Name: "existing detached policy is attached", Props: map[string]any{"Policy": "{}", "Attach": "true"}, Existing: true, ExpectAttached: true},
		{Name: "existing detached policy stays detached", Props: map[string]any{"Policy": "{}", "Attach": "false"}, Existing: true},
		{Name: "missing policy content", Props: map[string]any{"Attach": "true"}, ExpectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			fake := orgstest.NewFake()
			var existingID string
			if tc.Existing {
				existingID = fake.AddPolicy(types.PolicyTypeTagPolicy, "TagPolicy", "{}", tc.ExistingAttach)
			}
			h := newHandler(fake, types.PolicyTypeTagPolicy)

			resp, err := dispatch(t, h, cfn.Event{
				RequestType:        cfn.RequestCreate,
				LogicalResourceID:  "TagPolicy",
				ResourceProperties: tc.Props,
			})
			if tc.ExpectErr {
				require.Error(t, err)
				assert.Empty(t, fake.PoliciesNamed("TagPolicy"))
				return
			}
			require.NoError(t, err)
			if tc.Existing {
				assert.Equal(t, existingID, resp.PhysicalResourceID)
			}
			policies := fake.PoliciesNamed("TagPolicy")
			require.Len(t, policies, 1)
			if !tc.Existing {
				assert.Equal(t, "superwerker - TagPolicy", policies[0].Description)
			}
			assert.Equal(t, tc.ExpectAttached, fake.IsAttached(resp.PhysicalResourceID))
		})
	}
}

func TestDelete(t *testing.T) {
	testCases := []struct {
		Name       string
		PhysicalID func(fake *orgstest.Fake) string
	}{
		{
			Name: "attached policy",
			PhysicalID: func(fake *orgstest.Fake) string {
				return fake.AddPolicy(types.PolicyTypeBackupPolicy, "BackupPolicy", "{}", true)
			},
		},
		{
			Name: "detached policy",
			PhysicalID: func(fake *orgstest.Fake) string {
				return fake.AddPolicy(types.PolicyTypeBackupPolicy, "BackupPolicy", "{}", false)
			},
		},
		{Name: "policy already gone", PhysicalID: func(*orgstest.Fake) string { return "p-gone" }},
		{Name: "not a policy id", PhysicalID: func(*orgstest.Fake) string { return "2024/01/01/[$LATEST]abcdef" }},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			fake := orgstest.NewFake()
			id := tc.PhysicalID(fake)
			h := newHandler(fake, types.PolicyTypeBackupPolicy)

			resp, err := dispatch(t, h, cfn.Event{
				RequestType:        cfn.RequestDelete,
				LogicalResourceID:  "BackupPolicy",
				PhysicalResourceID: id,
				ResourceProperties: map[string]any{"Policy": "{}"},
			})
			require.NoError(t, err)
			assert.Equal(t, id, resp.PhysicalResourceID)
			assert.Empty(t, fake.PoliciesNamed("BackupPolicy"))
		})
	}
}

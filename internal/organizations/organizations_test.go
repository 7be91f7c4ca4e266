package organizations_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superwerker/superwerker/internal/organizations"
	"github.com/superwerker/superwerker/internal/organizations/orgstest"
	"github.com/superwerker/superwerker/internal/retry"
)

func newManager(fake *orgstest.Fake) *organizations.Manager {
	return organizations.NewManager(fake, organizations.WithRetrier(retry.New(
		retry.WithSchedule(0, 0, 0),
		retry.WithJitter(func() time.Duration { return 0 }),
	)))
}

func concurrentModification() error {
	return &types.ConcurrentModificationException{Message: aws.String("busy")}
}

func TestEnablePolicyType(t *testing.T) {
	testCases := []struct {
		Name          string
		AlreadyOn     bool
		Failures      []error
		ExpectedCalls int
		ExpectErr     bool
	}{
		{Name: "enables disabled type", ExpectedCalls: 1},
		{Name: "skips enabled type", AlreadyOn: true, ExpectedCalls: 0},
		{Name: "retries concurrent modification", Failures: []error{concurrentModification()}, ExpectedCalls: 2},
		{
			Name:          "gives up after schedule",
			Failures:      []error{concurrentModification(), concurrentModification(), concurrentModification()},
			ExpectedCalls: 3,
			ExpectErr:     true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			fake := orgstest.NewFake()
			fake.EnabledTypes[types.PolicyTypeTagPolicy] = tc.AlreadyOn
			fake.Failures["EnablePolicyType"] = tc.Failures

			err := newManager(fake).EnablePolicyType(context.Background(), types.PolicyTypeTagPolicy)
			calls := 0
			for _, c := range fake.Calls {
				if c == "EnablePolicyType" {
					calls++
				}
			}
			assert.Equal(t, tc.ExpectedCalls, calls)
			if tc.ExpectErr {
				require.ErrorIs(t, err, retry.ErrRetriesExhausted)
				return
			}
			require.NoError(t, err)
			assert.True(t, fake.EnabledTypes[types.PolicyTypeTagPolicy])
		})
	}
}

func TestFindPolicyByNamePaginates(t *testing.T) {
	fake := orgstest.NewFake()
	fake.PageSize = 1
	fake.AddPolicy(types.PolicyTypeServiceControlPolicy, "other", "{}", false)
	fake.AddPolicy(types.PolicyTypeTagPolicy, "superwerker", "{}", false)
	id := fake.AddPolicy(types.PolicyTypeServiceControlPolicy, "superwerker", "{}", true)

	m := newManager(fake)
	found, err := m.FindPolicyByName(context.Background(), types.PolicyTypeServiceControlPolicy, "superwerker")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, aws.ToString(found.Id))

	attached, err := m.PolicyAttachedToRoot(context.Background(), types.PolicyTypeServiceControlPolicy, id)
	require.NoError(t, err)
	assert.True(t, attached)

	missing, err := m.FindPolicyByName(context.Background(), types.PolicyTypeServiceControlPolicy, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPolicyLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := orgstest.NewFake()
	m := newManager(fake)

	id, err := m.CreatePolicy(ctx, types.PolicyTypeBackupPolicy, "backup", "superwerker", `{"plans":{}}`)
	require.NoError(t, err)
	require.NoError(t, m.AttachToRoot(ctx, id))
	require.NoError(t, m.AttachToRoot(ctx, id), "duplicate attachment is tolerated")
	assert.True(t, fake.IsAttached(id))

	require.NoError(t, m.DetachFromRoot(ctx, id))
	require.NoError(t, m.DetachFromRoot(ctx, id), "missing attachment is tolerated")
	require.NoError(t, m.DeletePolicy(ctx, id))
	require.NoError(t, m.DeletePolicy(ctx, id), "missing policy is tolerated")
	assert.Empty(t, fake.PoliciesNamed("backup"))
}

func TestDeletePolicyLogs(t *testing.T) {
	ctx := context.Background()
	fake := orgstest.NewFake()
	id := fake.AddPolicy(types.PolicyTypeServiceControlPolicy, "superwerker", "{}", false)

	var buf bytes.Buffer
	m := organizations.NewManager(fake,
		organizations.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		organizations.WithRetrier(retry.New(retry.WithSchedule(0), retry.WithJitter(func() time.Duration { return 0 }))))

	require.NoError(t, m.DeletePolicy(ctx, id))
	assert.Contains(t, buf.String(), `msg="policy deleted"`)
	assert.NotContains(t, buf.String(), "already deleted")

	buf.Reset()
	require.NoError(t, m.DeletePolicy(ctx, id))
	assert.Contains(t, buf.String(), `msg="policy already deleted"`)
}

func TestCreateOrganization(t *testing.T) {
	fake := orgstest.NewFake()
	m := newManager(fake)

	id, created, err := m.CreateOrganization(context.Background())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "o-fake", id)

	id, created, err = m.CreateOrganization(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, id)
}

func TestDelegatedAdministrator(t *testing.T) {
	fake := orgstest.NewFake()
	fake.DelegatedAdmins["securityhub.amazonaws.com"] = []string{"111111111111"}
	m := newManager(fake)
	ctx := context.Background()

	registered, err := m.DelegatedAdministrator(ctx, "111111111111", "securityhub.amazonaws.com")
	require.NoError(t, err)
	assert.True(t, registered)

	require.NoError(t, m.DeregisterDelegatedAdministrator(ctx, "111111111111", "securityhub.amazonaws.com"))
	require.NoError(t, m.DeregisterDelegatedAdministrator(ctx, "111111111111", "securityhub.amazonaws.com"))

	registered, err = m.DelegatedAdministrator(ctx, "111111111111", "securityhub.amazonaws.com")
	require.NoError(t, err)
	assert.False(t, registered)
}

package policytype_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/handlers/policytype"
	"github.com/superwerker/superwerker/internal/organizations"
	"github.com/superwerker/superwerker/internal/organizations/orgstest"
	"github.com/superwerker/superwerker/internal/retry"
)

func TestHandler(t *testing.T) {
	testCases := []struct {
		Name        string
		PolicyType  types.PolicyType
		RequestType cfn.RequestType
		Enabled     bool
		ExpectedID  string
		ExpectOn    bool
	}{
		{Name: "create enables scp", PolicyType: types.PolicyTypeServiceControlPolicy, RequestType: cfn.RequestCreate, ExpectedID: "SCP", ExpectOn: true},
		{Name: "create keeps enabled tag policy", PolicyType: types.PolicyTypeTagPolicy, RequestType: cfn.RequestCreate, Enabled: true, ExpectedID: "TAG_POLICY", ExpectOn: true},
		{Name: "create enables backup policy", PolicyType: types.PolicyTypeBackupPolicy, RequestType: cfn.RequestCreate, ExpectedID: "BACKUP_POLICY", ExpectOn: true},
		{Name: "update is a no-op", PolicyType: types.PolicyTypeBackupPolicy, RequestType: cfn.RequestUpdate, ExpectedID: "BACKUP_POLICY"},
		{Name: "delete keeps policy type", PolicyType: types.PolicyTypeTagPolicy, RequestType: cfn.RequestDelete, Enabled: true, ExpectedID: "TAG_POLICY", ExpectOn: true},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			fake := orgstest.NewFake()
			fake.EnabledTypes[tc.PolicyType] = tc.Enabled
			orgs := organizations.NewManager(fake, organizations.WithRetrier(retry.New(
				retry.WithSchedule(0),
				retry.WithJitter(func() time.Duration { return 0 }))))

			resp, err := customresource.Dispatch(context.Background(), policytype.New(orgs, tc.PolicyType), cfn.Event{
				RequestType:        tc.RequestType,
				PhysicalResourceID: policytype.PhysicalResourceID(tc.PolicyType),
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.ExpectedID, resp.PhysicalResourceID)
			assert.Equal(t, tc.ExpectOn, fake.EnabledTypes[tc.PolicyType])
		})
	}
}

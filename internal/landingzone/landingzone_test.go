package landingzone_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superwerker/superwerker/internal/handlers/bootstrap"
	"github.com/superwerker/superwerker/internal/landingzone"
	"github.com/superwerker/superwerker/internal/models"
)

type fakeEvents struct {
	inputs []*eventbridge.PutEventsInput
	failed int32
	err    error
}

func (f *fakeEvents) PutEvents(_ context.Context, params *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &eventbridge.PutEventsOutput{FailedEntryCount: f.failed}, nil
}

func TestEmit(t *testing.T) {
	testCases := []struct {
		Name             string
		State            string
		EventBus         string
		Source           string
		ExpectedEventBus string
		ExpectedSource   string
	}{
		{
			Name:             "succeeded on default bus",
			State:            models.LandingZoneStateSucceeded,
			ExpectedEventBus: landingzone.DefaultEventBus,
			ExpectedSource:   models.SourceLandingZone,
		},
		{
			Name:             "failed on custom bus",
			State:            models.LandingZoneStateFailed,
			EventBus:         "superwerker",
			ExpectedEventBus: "superwerker",
			ExpectedSource:   models.SourceLandingZone,
		},
		{
			Name:             "custom source",
			State:            models.LandingZoneStateSucceeded,
			Source:           "example.landingzone",
			ExpectedEventBus: landingzone.DefaultEventBus,
			ExpectedSource:   "example.landingzone",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			events := &fakeEvents{}
			err := landingzone.New(events,
				landingzone.WithEventBus(tc.EventBus),
				landingzone.WithSource(tc.Source)).Emit(context.Background(), tc.State)
			require.NoError(t, err)

			require.Len(t, events.inputs, 1)
			require.Len(t, events.inputs[0].Entries, 1)
			entry := events.inputs[0].Entries[0]
			assert.Equal(t, tc.ExpectedEventBus, aws.ToString(entry.EventBusName))
			assert.Equal(t, tc.ExpectedSource, aws.ToString(entry.Source))
			assert.NotEqual(t, models.SourceControlTower, aws.ToString(entry.Source))
			assert.Equal(t, models.DetailTypeCloudTrail, aws.ToString(entry.DetailType))

			var detail models.LifecycleDetail
			require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
			assert.Equal(t, models.EventNameSetupLandingZone, detail.EventName)
			assert.Equal(t, tc.State == models.LandingZoneStateSucceeded, detail.Succeeded())
		})
	}
}

func TestEmitErrors(t *testing.T) {
	err := landingzone.New(&fakeEvents{failed: 1}).Emit(context.Background(), models.LandingZoneStateSucceeded)
	var failed *bootstrap.FailedEntriesError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, int32(1), failed.Count)

	err = landingzone.New(&fakeEvents{err: errors.New("throttled")}).Emit(context.Background(), models.LandingZoneStateSucceeded)
	assert.ErrorContains(t, err, "throttled")
}

func TestEmitReservedSource(t *testing.T) {
	for _, source := range []string{models.SourceControlTower, "aws.organizations"} {
		t.Run(source, func(t *testing.T) {
			events := &fakeEvents{}
			err := landingzone.New(events, landingzone.WithSource(source)).Emit(context.Background(), models.LandingZoneStateSucceeded)
			require.ErrorIs(t, err, landingzone.ErrReservedSource)
			assert.Empty(t, events.inputs)
		})
	}
}

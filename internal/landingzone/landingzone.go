// Package landingzone emits synthetic Control Tower lifecycle events, which trigger the
// automation that normally runs after a landing zone setup.
package landingzone

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/handlers/bootstrap"
	"github.com/superwerker/superwerker/internal/helpers"
	"github.com/superwerker/superwerker/internal/models"
)

const DefaultEventBus = "default"

// ErrReservedSource is returned for event sources in the aws. namespace, which PutEvents rejects.
var ErrReservedSource = errors.New("event source is reserved for AWS services")

type Emitter struct {
	events   bootstrap.EventsAPI
	eventBus string
	source   string
	logger   *slog.Logger
}

type Option func(*Emitter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) {
		e.logger = logger.With("component", "landingzone")
	}
}

func WithEventBus(name string) Option {
	return func(e *Emitter) {
		if name != "" {
			e.eventBus = name
		}
	}
}

// WithSource replaces the event source. The bootstrap automation only reacts to
// models.SourceLandingZone unless its rule is extended.
func WithSource(source string) Option {
	return func(e *Emitter) {
		if source != "" {
			e.source = source
		}
	}
}

func New(events bootstrap.EventsAPI, opts ...Option) *Emitter {
	_inst := &Emitter{
		events:   events,
		eventBus: DefaultEventBus,
		source:   models.SourceLandingZone,
		logger:   helpers.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// Emit puts a SetupLandingZone event in the given state, shaped like the one
// CloudTrail delivers for Control Tower.
func (e *Emitter) Emit(ctx context.Context, state string, accounts ...models.Account) error {
	if strings.HasPrefix(e.source, "aws.") {
		return errors.Wrap(ErrReservedSource, e.source)
	}
	b, err := json.Marshal(models.NewLifecycleDetail(state, accounts...))
	if err != nil {
		return errors.Wrap(err, "failed to encode event detail")
	}
	out, err := e.events.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			EventBusName: aws.String(e.eventBus),
			Source:       aws.String(e.source),
			DetailType:   aws.String(models.DetailTypeCloudTrail),
			Detail:       aws.String(string(b)),
		}},
	})
	if err != nil {
		return errors.Wrap(err, "failed to put landing zone event")
	}
	if out.FailedEntryCount > 0 {
		return &bootstrap.FailedEntriesError{Count: out.FailedEntryCount, Code: models.EventNameSetupLandingZone}
	}
	e.logger.Info("landing zone event emitted", slog.String("state", state), slog.String("source", e.source), slog.String("eventBus", e.eventBus))
	return nil
}

// Package bootstrap finishes the superwerker installation once the landing zone is set up.
package bootstrap

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/helpers"
	"github.com/superwerker/superwerker/internal/models"
)

const reason = "Control Tower Setup completed"

type ParametersAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

type EventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

type Signaler interface {
	Success(ctx context.Context, url, reason string) error
}

// FailedEntriesError is returned when EventBridge rejects the finished event.
type FailedEntriesError struct {
	Count int32
	Code  string
}

func (e *FailedEntriesError) Error() string {
	return "failed to put " + e.Code + " event"
}

// AccountParameterName returns the parameter holding the id of the named core account.
func AccountParameterName(accountName string) string {
	return config.ParameterAccountIDPrefix + strings.ToLower(strings.ReplaceAll(accountName, " ", ""))
}

type Handler struct {
	parameters ParametersAPI
	events     EventsAPI
	signaler   Signaler
	signalURL  string
	logger     *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger.With("component", "bootstrap")
	}
}

func New(parameters ParametersAPI, events EventsAPI, signaler Signaler, signalURL string, opts ...Option) *Handler {
	_inst := &Handler{
		parameters: parameters,
		events:     events,
		signaler:   signaler,
		signalURL:  signalURL,
		logger:     helpers.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// Handle stores the core account ids, signals the stack and announces the finished landing zone.
// Events from other sources and lifecycle events other than a succeeded setup are ignored. The wait-condition handle only
// accepts the first signal, so a failed signal does not stop the announcement.
func (h *Handler) Handle(ctx context.Context, event models.Event) error {
	if !models.LifecycleSource(event.Source) {
		h.logger.Info("ignoring event from unknown source", slog.String("source", event.Source))
		return nil
	}
	detail, err := event.LifecycleDetail()
	if err != nil {
		return err
	}
	if !detail.Succeeded() {
		h.logger.Info("ignoring lifecycle event", slog.String("eventName", detail.EventName))
		return nil
	}

	for _, account := range detail.Accounts() {
		name := AccountParameterName(account.AccountName)
		_, err = h.parameters.PutParameter(ctx, &ssm.PutParameterInput{
			Name:      aws.String(name),
			Value:     aws.String(account.AccountID),
			Type:      ssmtypes.ParameterTypeString,
			Overwrite: aws.Bool(true),
		})
		if err != nil {
			return errors.Wrapf(err, "failed to store account id in %s", name)
		}
		h.logger.Info("stored account id", slog.String("name", name), slog.String("accountId", account.AccountID))
	}

	if err = h.signaler.Success(ctx, h.signalURL, reason); err != nil {
		h.logger.Warn("failed to signal installation stack", slog.Any("error", err))
	}

	b, err := json.Marshal(models.FinishedDetail{EventName: models.EventNameLandingZoneFinished})
	if err != nil {
		return errors.Wrap(err, "failed to encode event detail")
	}
	out, err := h.events.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			Source:     aws.String(models.SourceSuperwerker),
			DetailType: aws.String(models.DetailTypeSuperwerker),
			Detail:     aws.String(string(b)),
		}},
	})
	if err != nil {
		return errors.Wrap(err, "failed to put landing zone finished event")
	}
	if out.FailedEntryCount > 0 {
		return &FailedEntriesError{Count: out.FailedEntryCount, Code: models.EventNameLandingZoneFinished}
	}
	h.logger.Info("landing zone setup finished")
	return nil
}

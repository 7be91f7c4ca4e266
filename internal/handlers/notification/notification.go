// Package notification relays OpsItems created in OpsCenter to the notification topic.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/superwerker/superwerker/internal/helpers"
)

// SNS rejects longer subjects.
const maxSubjectLength = 100

type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// MissingFieldError is returned when the CloudTrail event lacks a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("event is missing %s", e.Field)
}

// OpsItem is the part of a CreateOpsItem CloudTrail event relayed to the topic.
type OpsItem struct {
	ID          string
	Title       string
	Description string
}

// The casing of CloudTrail fields depends on the API version of the caller.
var (
	idPaths          = []string{"detail.responseElements.OpsItemId", "detail.responseElements.opsItemId"}
	titlePaths       = []string{"detail.requestParameters.title", "detail.requestParameters.Title"}
	descriptionPaths = []string{"detail.requestParameters.description", "detail.requestParameters.Description"}
)

// ParseOpsItem extracts the OpsItem from a CloudTrail CreateOpsItem event.
func ParseOpsItem(event []byte) (OpsItem, error) {
	var (
		item OpsItem
		err  error
	)
	if item.ID, err = lookup(event, "OpsItemId", idPaths); err != nil {
		return OpsItem{}, err
	}
	if item.Title, err = lookup(event, "Title", titlePaths); err != nil {
		return OpsItem{}, err
	}
	if item.Description, err = lookup(event, "Description", descriptionPaths); err != nil {
		return OpsItem{}, err
	}
	return item, nil
}

func lookup(event []byte, field string, paths []string) (string, error) {
	for _, r := range gjson.GetManyBytes(event, paths...) {
		if r.Exists() && r.String() != "" {
			return r.String(), nil
		}
	}
	return "", &MissingFieldError{Field: field}
}

// URL links to the OpsItem in the Systems Manager console of region.
func (o OpsItem) URL(region string) string {
	return fmt.Sprintf("https://%s.console.aws.amazon.com/systems-manager/opsitems/%s", region, o.ID)
}

type Handler struct {
	client   API
	topicARN string
	region   string
	logger   *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger.With("component", "notification")
	}
}

func New(client API, topicARN, region string, opts ...Option) *Handler {
	_inst := &Handler{
		client:   client,
		topicARN: topicARN,
		region:   region,
		logger:   helpers.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// Handle publishes the OpsItem of event to the topic.
func (h *Handler) Handle(ctx context.Context, event json.RawMessage) error {
	item, err := ParseOpsItem(event)
	if err != nil {
		h.logger.Error("invalid opsitem event", slog.Any("error", err), slog.String("event", string(event)))
		return err
	}

	url := item.URL(h.region)
	h.logger.Info("publishing new ops item event from CloudTrail to SNS",
		slog.String("title", item.Title),
		slog.String("url", url))

	_, err = h.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(h.topicARN),
		Subject:  aws.String(helpers.Truncate("New OpsItem: "+item.Title, maxSubjectLength-len(" ..."))),
		Message:  aws.String(fmt.Sprintf("%s\n\n%s", item.Description, url)),
	})
	return errors.Wrap(err, "failed to publish opsitem notification")
}

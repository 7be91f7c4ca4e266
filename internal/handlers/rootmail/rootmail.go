// Package rootmail turns mail received for the root users into OpsItems.
package rootmail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/helpers"
)

const (
	KeyPrefix = "RootMail/"

	PasswordAssistanceSubject = "Amazon Web Services Password Assistance"
	missingResetLink          = "no password reset link"

	verdictPass = "PASS"

	maxTextLength   = 1020
	maxSourceLength = 60

	resetLinkTTL = 10 * time.Minute
)

// FilteredSubjects never create OpsItems.
var FilteredSubjects = []string{
	"Your AWS Account is Ready - Get Started Now",
	"Welcome to Amazon Web Services",
}

var resetLinkPattern = regexp.MustCompile(`(https://signin\.aws\.amazon\.com/resetpassword.*?)<br>`)

type ObjectsAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type OpsAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	CreateOpsItem(ctx context.Context, params *ssm.CreateOpsItemInput, optFns ...func(*ssm.Options)) (*ssm.CreateOpsItemOutput, error)
}

// Handler processes SES receipt events for the root mail domain.
type Handler struct {
	objects   ObjectsAPI
	ops       OpsAPI
	bucket    string
	bucketARN string
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger.With("component", "rootmail")
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

func New(objects ObjectsAPI, ops OpsAPI, bucket, bucketARN string, opts ...Option) *Handler {
	_inst := &Handler{
		objects:   objects,
		ops:       ops,
		bucket:    bucket,
		bucketARN: bucketARN,
		now:       time.Now,
		logger:    helpers.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// Handle processes every record of event.
func (h *Handler) Handle(ctx context.Context, event events.SimpleEmailEvent) error {
	for _, record := range event.Records {
		if err := h.process(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// failedVerdict returns the first verdict class that did not pass.
func failedVerdict(receipt events.SimpleEmailReceipt) (string, string, bool) {
	verdicts := []struct{ class, status string }{
		{"dkim", receipt.DKIMVerdict.Status},
		{"spam", receipt.SpamVerdict.Status},
		{"spf", receipt.SPFVerdict.Status},
		{"virus", receipt.VirusVerdict.Status},
	}
	for _, v := range verdicts {
		if v.status != verdictPass {
			return v.class, v.status, true
		}
	}
	return "", "", false
}

func (h *Handler) process(ctx context.Context, record events.SimpleEmailRecord) error {
	id := record.SES.Mail.MessageID
	key := KeyPrefix + id
	logger := h.logger.With(slog.String("id", id), slog.String("key", key))
	logger.Debug("processing mail...")

	if class, status, failed := failedVerdict(record.SES.Receipt); failed {
		logger.Warn("verdict failed, ops item skipped", slog.String("class", class), slog.String("value", status))
		return nil
	}

	obj, err := h.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to get mail %s", key)
	}
	defer obj.Body.Close()

	mail, err := enmime.ReadEnvelope(obj.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to parse mail %s", key)
	}

	title := mail.GetHeader("Subject")
	if title == "" {
		logger.Warn("no subject found")
		return nil
	}
	if slices.Contains(FilteredSubjects, title) {
		logger.Info("filtered email", slog.String("title", title))
		return nil
	}

	var source string
	if len(record.SES.Mail.Destination) > 0 {
		source = record.SES.Mail.Destination[0]
	}

	if title == PasswordAssistanceSubject {
		if mail.HTML == "" {
			logger.Warn("no html body found in password assistance email")
			return nil
		}
		return h.storeResetLink(ctx, logger, source, mail.HTML)
	}

	description := helpers.FirstNonEmpty(mail.Text, mail.HTML)
	if description == "" {
		logger.Warn("no text or html body found")
		return nil
	}

	dedup, err := json.Marshal(map[string]string{"dedupString": id})
	if err != nil {
		return errors.Wrap(err, "failed to encode dedup string")
	}
	resources, err := json.Marshal([]map[string]string{{"arn": fmt.Sprintf("%s/%s", h.bucketARN, key)}})
	if err != nil {
		return errors.Wrap(err, "failed to encode resources")
	}

	title = helpers.Truncate(title, maxTextLength)
	_, err = h.ops.CreateOpsItem(ctx, &ssm.CreateOpsItemInput{
		Title:       aws.String(title),
		Description: aws.String(helpers.Truncate(description, maxTextLength)),
		Source:      aws.String(helpers.Truncate(source, maxSourceLength)),
		OperationalData: map[string]ssmtypes.OpsItemDataValue{
			"/aws/dedup": {
				Value: aws.String(string(dedup)),
				Type:  ssmtypes.OpsItemDataTypeSearchableString,
			},
			"/aws/resources": {
				Value: aws.String(string(resources)),
				Type:  ssmtypes.OpsItemDataTypeSearchableString,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create ops item")
	}
	logger.Info("created ops item", slog.String("title", title))
	return nil
}

// Token returns the unique part of a root+<token>@domain address. It reports false for
// addresses without a token.
func Token(address string) (string, bool) {
	local, _, _ := strings.Cut(address, "@")
	token, ok := strings.CutPrefix(local, "root+")
	return token, ok && token != ""
}

// ResetLink extracts the password reset link from a password assistance mail.
func ResetLink(html string) string {
	m := resetLinkPattern.FindStringSubmatch(html)
	if m == nil {
		return missingResetLink
	}
	return m[1]
}

type parameterPolicy struct {
	Type       string            `json:"Type"`
	Version    string            `json:"Version"`
	Attributes map[string]string `json:"Attributes"`
}

func (h *Handler) storeResetLink(ctx context.Context, logger *slog.Logger, source, html string) error {
	token, ok := Token(source)
	if !ok {
		logger.Warn("password assistance email not sent to a root mail address, skipping", slog.String("destination", source))
		return nil
	}
	name := config.ParameterPasswordResetPrefix + token
	policies, err := json.Marshal([]parameterPolicy{{
		Type:       "Expiration",
		Version:    "1.0",
		Attributes: map[string]string{"Timestamp": h.now().Add(resetLinkTTL).UTC().Format(time.RFC3339)},
	}})
	if err != nil {
		return errors.Wrap(err, "failed to encode parameter policies")
	}

	_, err = h.ops.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(ResetLink(html)),
		Type:      ssmtypes.ParameterTypeString,
		Tier:      ssmtypes.ParameterTierAdvanced,
		Overwrite: aws.Bool(true),
		Policies:  aws.String(string(policies)),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to store password reset link in %s", name)
	}
	logger.Info("stored password reset link", slog.String("name", name))
	return nil
}

// Package billing configures organization billing settings and reports them to the dashboard.
package billing

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"html/template"
	"log/slog"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/service/account"
	accounttypes "github.com/aws/aws-sdk-go-v2/service/account/types"
	"github.com/aws/aws-sdk-go-v2/service/taxsettings"
	taxtypes "github.com/aws/aws-sdk-go-v2/service/taxsettings/types"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/helpers"
)

// PhysicalResourceID is the constant id of the resource.
const PhysicalResourceID = "BillingSetup"

var accessDeniedCodes = []string{"AccessDeniedException", "AccessDenied"}

//go:embed templates/status.html.tmpl
var statusTemplateText string

var statusTemplate = template.Must(template.New("status").Parse(statusTemplateText))

type TaxAPI interface {
	GetTaxInheritance(ctx context.Context, params *taxsettings.GetTaxInheritanceInput, optFns ...func(*taxsettings.Options)) (*taxsettings.GetTaxInheritanceOutput, error)
	PutTaxInheritance(ctx context.Context, params *taxsettings.PutTaxInheritanceInput, optFns ...func(*taxsettings.Options)) (*taxsettings.PutTaxInheritanceOutput, error)
}

type AccountAPI interface {
	GetAlternateContact(ctx context.Context, params *account.GetAlternateContactInput, optFns ...func(*account.Options)) (*account.GetAlternateContactOutput, error)
}

// Status is rendered into the dashboard widget.
type Status struct {
	TaxInheritance    bool
	SecurityContact   bool
	OperationsContact bool
}

// Handler enables tax inheritance when the billing resource is created.
type Handler struct {
	customresource.NoopUpdate
	customresource.NoopDelete

	tax      TaxAPI
	accounts AccountAPI
	logger   *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger.With("component", "billing")
	}
}

func New(tax TaxAPI, accounts AccountAPI, opts ...Option) *Handler {
	_inst := &Handler{tax: tax, accounts: accounts, logger: helpers.NewNoopLogger()}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

func (h *Handler) Create(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	req.Logger.Info("configuring billing settings...")
	_, err := h.tax.PutTaxInheritance(ctx, &taxsettings.PutTaxInheritanceInput{
		HeritageStatus: taxtypes.HeritageStatusOptIn,
	})
	if helpers.HasErrorCode(err, accessDeniedCodes...) {
		req.Logger.Warn("no IAM access to billing, skipping billing settings", slog.Any("error", err))
		return customresource.Response{PhysicalResourceID: PhysicalResourceID}, nil
	}
	if err != nil {
		return customresource.Response{}, errors.Wrap(err, "failed to enable tax inheritance")
	}
	req.Logger.Info("tax inheritance enabled")
	return customresource.Response{PhysicalResourceID: PhysicalResourceID}, nil
}

// Status reads the current billing settings.
func (h *Handler) Status(ctx context.Context) (Status, error) {
	var status Status
	out, err := h.tax.GetTaxInheritance(ctx, &taxsettings.GetTaxInheritanceInput{})
	switch {
	case helpers.HasErrorCode(err, "ResourceNotFoundException"):
	case err != nil:
		return Status{}, errors.Wrap(err, "failed to get tax inheritance")
	default:
		status.TaxInheritance = out.HeritageStatus == taxtypes.HeritageStatusOptIn
	}

	if status.SecurityContact, err = h.contactSet(ctx, accounttypes.AlternateContactTypeSecurity); err != nil {
		return Status{}, err
	}
	if status.OperationsContact, err = h.contactSet(ctx, accounttypes.AlternateContactTypeOperations); err != nil {
		return Status{}, err
	}
	return status, nil
}

func (h *Handler) contactSet(ctx context.Context, contactType accounttypes.AlternateContactType) (bool, error) {
	out, err := h.accounts.GetAlternateContact(ctx, &account.GetAlternateContactInput{
		AlternateContactType: contactType,
	})
	if helpers.HasErrorCode(err, "ResourceNotFoundException") {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to get %s alternate contact", contactType)
	}
	return out.AlternateContact != nil, nil
}

// Render returns the dashboard widget HTML. Missing billing permissions produce the
// instructions for activating IAM access instead of an error.
func (h *Handler) Render(ctx context.Context) (string, error) {
	status, err := h.Status(ctx)
	data := struct {
		Status
		AccessDenied bool
	}{Status: status}
	if helpers.HasErrorCode(err, accessDeniedCodes...) {
		h.logger.Warn("no IAM access to billing", slog.Any("error", err))
		data.AccessDenied = true
	} else if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err = statusTemplate.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to render billing status")
	}
	return buf.String(), nil
}

// Entrypoint returns a Lambda handler serving custom-resource events through customResource
// and every other invocation, such as dashboard custom widgets, with the rendered status.
func (h *Handler) Entrypoint(customResource func(context.Context, cfn.Event) (any, error)) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var event cfn.Event
		if err := json.Unmarshal(payload, &event); err == nil && event.RequestType != "" {
			return customResource(ctx, event)
		}
		return h.Render(ctx)
	}
}

// Package prepare creates the organization and the landing zone settings before Control Tower runs.
package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/helpers"
	"github.com/superwerker/superwerker/internal/organizations"
)

// ExistingOrganizationID is the physical resource id used when the organization was created elsewhere.
const ExistingOrganizationID = "organisationalreadyexists"

type ParametersAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// Signaler notifies the wait condition of the stack.
type Signaler interface {
	Success(ctx context.Context, url, reason string) error
}

type Properties struct {
	SignalURL    string `json:"SIGNAL_URL" validate:"required,url"`
	ServiceToken string `json:"ServiceToken"`
	KMSKeyARN    string `json:"CONTROL_TOWER_KMS_KEY_ARN"`

	VersionParameter            string `json:"CONTROL_TOWER_VERSION_PARAMETER"`
	RegionsParameter            string `json:"CONTROL_TOWER_REGIONS_PARAMETER"`
	KMSKeyParameter             string `json:"CONTROL_TOWER_KMS_KEY_PARAMETER"`
	SecurityOUParameter         string `json:"CONTROL_TOWER_SECURITY_OU_PARAMETER"`
	SandboxOUParameter          string `json:"CONTROL_TOWER_SANDBOX_OU_PARAMETER"`
	LoggingRetentionParameter   string `json:"CONTROL_TOWER_BUCKET_RETENTION_LOGGING_PARAMETER"`
	AccessLogRetentionParameter string `json:"CONTROL_TOWER_BUCKET_RETENTION_ACCESS_LOGGING_PARAMETER"`
}

type parameter struct {
	name, value, description string
	kind                     types.ParameterType
}

func (p Properties) parameters() []parameter {
	params := []parameter{
		{
			name:        helpers.FirstNonEmpty(p.SecurityOUParameter, config.ParameterControlTowerSecurityOU),
			value:       config.DefaultSecurityOUName,
			description: fmt.Sprintf("(superwerker) Control Tower name of %s OU (cannot be changed after first install)", config.DefaultSecurityOUName),
		},
		{
			name:        helpers.FirstNonEmpty(p.SandboxOUParameter, config.ParameterControlTowerSandboxOU),
			value:       config.DefaultSandboxOUName,
			description: fmt.Sprintf("(superwerker) Control Tower name of %s OU (cannot be changed after first install)", config.DefaultSandboxOUName),
		},
		{
			name:        helpers.FirstNonEmpty(p.VersionParameter, config.ParameterControlTowerVersion),
			value:       config.DefaultControlTowerVersion,
			description: "(superwerker) Control Tower version",
		},
		{
			name:        helpers.FirstNonEmpty(p.LoggingRetentionParameter, config.ParameterControlTowerLoggingRetention),
			value:       strconv.Itoa(config.DefaultLoggingRetentionDays),
			description: "(superwerker) Control Tower bucket retention for logging",
		},
		{
			name:        helpers.FirstNonEmpty(p.AccessLogRetentionParameter, config.ParameterControlTowerAccessLogRetention),
			value:       strconv.Itoa(config.DefaultAccessLogRetentionDays),
			description: "(superwerker) Control Tower bucket retention for access logging",
		},
	}
	if region := serviceTokenRegion(p.ServiceToken); region != "" {
		params = append(params, parameter{
			name:        helpers.FirstNonEmpty(p.RegionsParameter, config.ParameterControlTowerRegions),
			value:       region,
			description: "(superwerker) Control Tower governed regions",
			kind:        types.ParameterTypeStringList,
		})
	}
	if p.KMSKeyARN != "" {
		params = append(params, parameter{
			name:        helpers.FirstNonEmpty(p.KMSKeyParameter, config.ParameterControlTowerKMSKey),
			value:       p.KMSKeyARN,
			description: "(superwerker) Control Tower KMS key arn for log encryption",
		})
	}
	return params
}

// serviceTokenRegion returns the region of the handler's Lambda ARN.
func serviceTokenRegion(serviceToken string) string {
	parts := strings.Split(serviceToken, ":")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

type Handler struct {
	customresource.NoopDelete

	orgs       *organizations.Manager
	parameters ParametersAPI
	signaler   Signaler
}

func New(orgs *organizations.Manager, parameters ParametersAPI, signaler Signaler) *Handler {
	return &Handler{orgs: orgs, parameters: parameters, signaler: signaler}
}

func (h *Handler) Create(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	return h.prepare(ctx, req)
}

func (h *Handler) Update(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	return h.prepare(ctx, req)
}

func (h *Handler) prepare(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	var props Properties
	if err := req.Properties(&props); err != nil {
		return customresource.Response{}, err
	}

	req.Logger.Info("creating organization...")
	id, created, err := h.orgs.CreateOrganization(ctx)
	if err != nil {
		return customresource.Response{}, err
	}
	if !created {
		id = ExistingOrganizationID
	}

	req.Logger.Info("creating control tower parameters...")
	for _, p := range props.parameters() {
		if err = h.putParameter(ctx, req.Logger, p); err != nil {
			return customresource.Response{}, err
		}
	}

	req.Logger.Info("signaling stack...")
	if err = h.signaler.Success(ctx, props.SignalURL, "Organization creation completed"); err != nil {
		req.Logger.Error("failed to send cloudformation signal", slog.Any("error", err))
	}
	return customresource.Response{PhysicalResourceID: id}, nil
}

func (h *Handler) putParameter(ctx context.Context, logger *slog.Logger, p parameter) error {
	kind := p.kind
	if kind == "" {
		kind = types.ParameterTypeString
	}
	_, err := h.parameters.PutParameter(ctx, &ssm.PutParameterInput{
		Name:        aws.String(p.name),
		Value:       aws.String(p.value),
		Description: aws.String(p.description),
		Type:        kind,
		Overwrite:   aws.Bool(false),
	})
	if helpers.HasErrorCode(err, "ParameterAlreadyExists") {
		logger.Info("parameter already exists, skipping creation", slog.String("name", p.name))
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to create parameter %s", p.name)
	}
	return nil
}

// Package controltower sets up the AWS Control Tower landing zone.
package controltower

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/controltower"
	"github.com/aws/aws-sdk-go-v2/service/controltower/document"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/helpers"
)

type API interface {
	ListLandingZones(ctx context.Context, params *controltower.ListLandingZonesInput, optFns ...func(*controltower.Options)) (*controltower.ListLandingZonesOutput, error)
	CreateLandingZone(ctx context.Context, params *controltower.CreateLandingZoneInput, optFns ...func(*controltower.Options)) (*controltower.CreateLandingZoneOutput, error)
}

type ParametersAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

type Properties struct {
	LogArchiveEmail string `json:"LOG_ARCHIVE_AWS_ACCOUNT_EMAIL"`
	AuditEmail      string `json:"AUDIT_AWS_ACCOUNT_EMAIL"`
	Version         string `json:"Version"`
}

// MissingParameterError is returned when a required SSM parameter is absent.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return "missing SSM parameter " + e.Name
}

// Handler starts the landing zone setup on Create. The landing zone is never torn down.
type Handler struct {
	customresource.NoopUpdate
	customresource.NoopDelete

	tower      API
	parameters ParametersAPI
}

func New(tower API, parameters ParametersAPI) *Handler {
	return &Handler{tower: tower, parameters: parameters}
}

func (h *Handler) Create(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	var props Properties
	if err := req.Properties(&props); err != nil {
		return customresource.Response{}, err
	}
	logger := req.Logger.With(
		slog.String("logArchiveEmail", props.LogArchiveEmail),
		slog.String("auditEmail", props.AuditEmail))

	existing, err := h.tower.ListLandingZones(ctx, &controltower.ListLandingZonesInput{})
	if err != nil {
		return customresource.Response{}, errors.Wrap(err, "failed to list landing zones")
	}
	if len(existing.LandingZones) > 0 {
		arn := aws.ToString(existing.LandingZones[0].Arn)
		logger.Info("landing zone already exists", slog.String("arn", arn))
		return customresource.Response{PhysicalResourceID: arn}, nil
	}

	settings, err := h.Settings(ctx)
	if err != nil {
		return customresource.Response{}, err
	}
	manifest := NewManifest(settings)
	version := helpers.FirstNonEmpty(props.Version, settings.Version, config.DefaultControlTowerVersion)

	out, err := h.tower.CreateLandingZone(ctx, &controltower.CreateLandingZoneInput{
		Manifest: document.NewLazyDocument(manifest),
		Version:  aws.String(version),
	})
	if err != nil {
		return customresource.Response{}, errors.Wrap(err, "failed to create landing zone")
	}
	arn := aws.ToString(out.Arn)
	logger.Info("landing zone setup started",
		slog.String("arn", arn),
		slog.String("version", version),
		slog.String("operationId", aws.ToString(out.OperationIdentifier)),
		slog.Any("regions", manifest.GovernedRegions))
	return customresource.Response{PhysicalResourceID: arn}, nil
}

// Settings reads the landing zone settings from the parameter store.
func (h *Handler) Settings(ctx context.Context) (Settings, error) {
	out, err := h.parameters.GetParameters(ctx, &ssm.GetParametersInput{
		Names: []string{
			config.ParameterLogArchiveAccountID,
			config.ParameterAuditAccountID,
			config.ParameterControlTowerVersion,
			config.ParameterControlTowerKMSKey,
			config.ParameterControlTowerRegions,
			config.ParameterControlTowerSecurityOU,
			config.ParameterControlTowerSandboxOU,
			config.ParameterControlTowerLoggingRetention,
			config.ParameterControlTowerAccessLogRetention,
		},
	})
	if err != nil {
		return Settings{}, errors.Wrap(err, "failed to read control tower parameters")
	}
	values := make(map[string]string, len(out.Parameters))
	for _, p := range out.Parameters {
		values[aws.ToString(p.Name)] = aws.ToString(p.Value)
	}

	for _, name := range []string{config.ParameterLogArchiveAccountID, config.ParameterAuditAccountID} {
		if values[name] == "" {
			return Settings{}, &MissingParameterError{Name: name}
		}
	}
	s := Settings{
		Version:             values[config.ParameterControlTowerVersion],
		LogArchiveAccountID: values[config.ParameterLogArchiveAccountID],
		AuditAccountID:      values[config.ParameterAuditAccountID],
		KMSKeyARN:           values[config.ParameterControlTowerKMSKey],
		Regions:             ParseRegions(values[config.ParameterControlTowerRegions]),
		SecurityOUName:      values[config.ParameterControlTowerSecurityOU],
		SandboxOUName:       values[config.ParameterControlTowerSandboxOU],
	}
	if s.LoggingRetentionDays, err = days(values, config.ParameterControlTowerLoggingRetention); err != nil {
		return Settings{}, err
	}
	if s.AccessLogRetentionDays, err = days(values, config.ParameterControlTowerAccessLogRetention); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func days(values map[string]string, name string) (int, error) {
	v, ok := values[name]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid retention in %s", name)
	}
	return n, nil
}

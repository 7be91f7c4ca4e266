// Package dashboard generates the superwerker living documentation dashboard.
package dashboard

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/helpers"
)

const (
	Name = "superwerker"
	// RootMailReadyAlarm is OK once the domain delegation resolves.
	RootMailReadyAlarm = "superwerker-RootMailReady"
)

//go:embed templates/dashboard.md.tmpl
var dashboardTemplateText string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardTemplateText))

// ParametersAPI reads the parameters shown on the dashboard.
type ParametersAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// CloudWatchAPI publishes the dashboard.
type CloudWatchAPI interface {
	DescribeAlarms(ctx context.Context, params *cloudwatch.DescribeAlarmsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error)
	PutDashboard(ctx context.Context, params *cloudwatch.PutDashboardInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

// Content is rendered into the markdown widget.
type Content struct {
	Domain      string
	Region      string
	DNSReady    bool
	NameServers []string
	UpdatedAt   time.Time
}

// Markdown renders the dashboard text.
func (c Content) Markdown() (string, error) {
	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, c); err != nil {
		return "", errors.Wrap(err, "failed to render dashboard")
	}
	return buf.String(), nil
}

type widgetProperties struct {
	Markdown string `json:"markdown"`
}

type widget struct {
	Type       string           `json:"type"`
	X          int              `json:"x"`
	Y          int              `json:"y"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Properties widgetProperties `json:"properties"`
}

type body struct {
	Widgets []widget `json:"widgets"`
}

// Body returns the dashboard body with a single full-width text widget.
func Body(markdown string) (string, error) {
	b, err := json.Marshal(body{Widgets: []widget{{
		Type:       "text",
		Width:      24,
		Height:     20,
		Properties: widgetProperties{Markdown: markdown},
	}}})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode dashboard body")
	}
	return string(b), nil
}

// Generator renders the living documentation of an installation and publishes it as a dashboard.
type Generator struct {
	parameters ParametersAPI
	cloudwatch CloudWatchAPI
	domain     string
	region     string
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Generator)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger.With("component", "dashboard")
	}
}

// WithClock replaces the time source of the rendered timestamp.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// New returns a Generator for the superwerker domain in region.
func New(parameters ParametersAPI, cw CloudWatchAPI, domain, region string, opts ...Option) *Generator {
	_inst := &Generator{
		parameters: parameters,
		cloudwatch: cw,
		domain:     domain,
		region:     region,
		now:        time.Now,
		logger:     helpers.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// Content collects the current DNS delegation state.
func (g *Generator) Content(ctx context.Context) (Content, error) {
	content := Content{Domain: g.domain, Region: g.region, UpdatedAt: g.now().UTC()}

	params, err := g.parameters.GetParameters(ctx, &ssm.GetParametersInput{
		Names: []string{config.ParameterDomainNameServers},
	})
	if err != nil {
		return Content{}, errors.Wrap(err, "failed to get parameters")
	}
	for _, p := range params.Parameters {
		if aws.ToString(p.Name) == config.ParameterDomainNameServers {
			content.NameServers = strings.Split(aws.ToString(p.Value), ",")
		}
	}

	alarms, err := g.cloudwatch.DescribeAlarms(ctx, &cloudwatch.DescribeAlarmsInput{
		AlarmNames: []string{RootMailReadyAlarm},
	})
	if err != nil {
		return Content{}, errors.Wrap(err, "failed to describe alarms")
	}
	for _, a := range alarms.MetricAlarms {
		if aws.ToString(a.AlarmName) == RootMailReadyAlarm {
			content.DNSReady = a.StateValue == cwtypes.StateValueOk
		}
	}
	return content, nil
}

// Generate renders and publishes the dashboard.
func (g *Generator) Generate(ctx context.Context) error {
	content, err := g.Content(ctx)
	if err != nil {
		return err
	}
	markdown, err := content.Markdown()
	if err != nil {
		return err
	}
	b, err := Body(markdown)
	if err != nil {
		return err
	}

	g.logger.Info("updating dashboard...", slog.Bool("dnsReady", content.DNSReady))
	_, err = g.cloudwatch.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(Name),
		DashboardBody: aws.String(b),
	})
	return errors.Wrap(err, "failed to put dashboard")
}

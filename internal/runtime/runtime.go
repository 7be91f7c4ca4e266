// Package runtime builds the Lambda entry points of the superwerker functions.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aws/aws-lambda-go/cfn"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"

	"github.com/superwerker/superwerker/internal/config"
	awsctl "github.com/superwerker/superwerker/internal/controllers/aws"
	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/handlers/billing"
	"github.com/superwerker/superwerker/internal/handlers/bootstrap"
	"github.com/superwerker/superwerker/internal/handlers/budget"
	"github.com/superwerker/superwerker/internal/handlers/controltower"
	"github.com/superwerker/superwerker/internal/handlers/dashboard"
	"github.com/superwerker/superwerker/internal/handlers/documentshare"
	"github.com/superwerker/superwerker/internal/handlers/mailaddress"
	"github.com/superwerker/superwerker/internal/handlers/notification"
	"github.com/superwerker/superwerker/internal/handlers/policy"
	"github.com/superwerker/superwerker/internal/handlers/policytype"
	"github.com/superwerker/superwerker/internal/handlers/prepare"
	"github.com/superwerker/superwerker/internal/handlers/rootmail"
	"github.com/superwerker/superwerker/internal/handlers/securityhub"
	"github.com/superwerker/superwerker/internal/handlers/stacksets"
	"github.com/superwerker/superwerker/internal/helpers"
	"github.com/superwerker/superwerker/internal/organizations"
	"github.com/superwerker/superwerker/internal/signal"
)

// Function names as deployed by the superwerker templates.
const (
	SCPEnableSetup              = "scp-enable-setup"
	BackupPolicyEnable          = "backup-policy-enable"
	TagPolicyEnable             = "tag-policy-enable"
	SCPCreateSetup              = "scp-create-setup"
	SCPRoot                     = "scp-root"
	TagPolicy                   = "tag-policy"
	BackupPolicy                = "backup-policy"
	BackupTagRemediationPublic  = "backup-tag-remediation-public"
	EnableCfnStackSetsOrgAccess = "enable-cfn-stack-sets-org-access"
	EnableControlTower          = "enable-controltower"
	BillingSetup                = "billing-setup"
	SecurityHubOrgAdmin         = "securityhub-org-admin"
	PrepareAccount              = "prepare-account"
	GenerateMailAddress         = "generate-mail-address"
	NotificationOpsItemCreated  = "notification-opsitem-created"
	BudgetUpdater               = "budget-updater"
	LivingDocsDashboard         = "living-docs-dashboard"
	RootMailOpsSanta            = "rootmail-ops-santa"
	SuperwerkerBootstrap        = "superwerker-bootstrap"
	defaultSCPName              = "superwerker"
	defaultRootSCPName          = "superwerker-root"
)

// UnknownHandlerError is returned for a name no function is registered under.
type UnknownHandlerError struct {
	Name string
}

func (e *UnknownHandlerError) Error() string {
	return fmt.Sprintf("unknown handler %q", e.Name)
}

type builder func(r *Runtime) (any, error)

var builders = map[string]builder{
	SCPEnableSetup:     policyTypeBuilder(orgtypes.PolicyTypeServiceControlPolicy),
	BackupPolicyEnable: policyTypeBuilder(orgtypes.PolicyTypeBackupPolicy),
	TagPolicyEnable:    policyTypeBuilder(orgtypes.PolicyTypeTagPolicy),
	SCPCreateSetup:     policyBuilder(orgtypes.PolicyTypeServiceControlPolicy, policy.WithDefaultName(defaultSCPName)),
	SCPRoot:            policyBuilder(orgtypes.PolicyTypeServiceControlPolicy, policy.WithDefaultName(defaultRootSCPName)),
	TagPolicy:          policyBuilder(orgtypes.PolicyTypeTagPolicy),
	BackupPolicy:       policyBuilder(orgtypes.PolicyTypeBackupPolicy),
	BackupTagRemediationPublic: func(r *Runtime) (any, error) {
		return r.customResource(documentshare.New(r.aws.SSM())), nil
	},
	EnableCfnStackSetsOrgAccess: func(r *Runtime) (any, error) {
		return r.customResource(stacksets.New(r.aws.AssumeRole(r.env.RoleARN).CloudFormation())), nil
	},
	EnableControlTower: func(r *Runtime) (any, error) {
		tower := r.aws.AssumeRole(r.env.ControlTowerRoleARN).ControlTower()
		return r.customResource(controltower.New(tower, r.aws.SSM())), nil
	},
	BillingSetup: func(r *Runtime) (any, error) {
		billingAWS := r.aws.AssumeRole(r.env.BillingRoleARN)
		h := billing.New(billingAWS.TaxSettings(), billingAWS.Account(), billing.WithLogger(r.logger))
		return h.Entrypoint(r.customResource(h)), nil
	},
	SecurityHubOrgAdmin: func(r *Runtime) (any, error) {
		return r.customResource(securityhub.New(r.aws.SecurityHub(), r.organizations())), nil
	},
	PrepareAccount: func(r *Runtime) (any, error) {
		return r.customResource(prepare.New(r.organizations(), r.aws.SSM(), signal.New(signal.WithLogger(r.logger)))), nil
	},
	GenerateMailAddress: func(r *Runtime) (any, error) {
		return r.customResource(mailaddress.New()), nil
	},
	NotificationOpsItemCreated: func(r *Runtime) (any, error) {
		if r.env.TopicARN == "" {
			return nil, &config.MissingVariableError{Name: "TOPIC_ARN"}
		}
		h := notification.New(r.aws.SNS(), r.env.TopicARN, r.region(), notification.WithLogger(r.logger))
		return h.Handle, nil
	},
	BudgetUpdater: func(r *Runtime) (any, error) {
		stackName := r.env.BudgetStackName()
		if stackName == "" {
			return nil, &config.MissingVariableError{Name: "STACK_NAME"}
		}
		u := budget.New(r.aws.CostExplorer(), r.aws.CloudFormation(), stackName, budget.WithLogger(r.logger))
		return u.Update, nil
	},
	LivingDocsDashboard: func(r *Runtime) (any, error) {
		if r.env.Domain == "" {
			return nil, &config.MissingVariableError{Name: "SUPERWERKER_DOMAIN"}
		}
		g := dashboard.New(r.aws.SSM(), r.aws.CloudWatch(), r.env.Domain, r.region(), dashboard.WithLogger(r.logger))
		return g.Generate, nil
	},
	RootMailOpsSanta: func(r *Runtime) (any, error) {
		if r.env.EmailBucket == "" {
			return nil, &config.MissingVariableError{Name: "EMAIL_BUCKET"}
		}
		h := rootmail.New(r.aws.S3(), r.aws.SSM(), r.env.EmailBucket, r.env.EmailBucketARN, rootmail.WithLogger(r.logger))
		return h.Handle, nil
	},
	SuperwerkerBootstrap: func(r *Runtime) (any, error) {
		if r.env.SignalURL == "" {
			return nil, &config.MissingVariableError{Name: "SIGNAL_URL"}
		}
		h := bootstrap.New(r.aws.SSM(), r.aws.EventBridge(), signal.New(signal.WithLogger(r.logger)), r.env.SignalURL,
			bootstrap.WithLogger(r.logger))
		return h.Handle, nil
	},
}

func policyTypeBuilder(policyType orgtypes.PolicyType) builder {
	return func(r *Runtime) (any, error) {
		return r.customResource(policytype.New(r.organizations(), policyType)), nil
	}
}

func policyBuilder(policyType orgtypes.PolicyType, opts ...policy.Option) builder {
	return func(r *Runtime) (any, error) {
		return r.customResource(policy.New(r.organizations(), policyType, opts...)), nil
	}
}

// Names returns the registered function names in lexical order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type Option func(*Runtime)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithProtocol selects how custom-resource results reach CloudFormation.
func WithProtocol(protocol string) Option {
	return func(r *Runtime) {
		r.protocol = protocol
	}
}

type Runtime struct {
	aws      *awsctl.Controller
	env      config.Environment
	protocol string
	logger   *slog.Logger
}

// NewRuntime creates a new runtime instance
func NewRuntime(controller *awsctl.Controller, env config.Environment, opts ...Option) *Runtime {
	_inst := &Runtime{aws: controller, env: env, protocol: config.ProtocolResponseURL}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.logger == nil {
		_inst.logger = helpers.NewNoopLogger()
	}
	return _inst
}

// Handler returns the Lambda handler registered under name.
func (r *Runtime) Handler(name string) (any, error) {
	build, ok := builders[name]
	if !ok {
		return nil, &UnknownHandlerError{Name: name}
	}
	r.logger.Debug("building handler...", slog.String("handler", name))
	return build(r)
}

func (r *Runtime) region() string {
	return helpers.FirstNonEmpty(r.env.Region, r.aws.Region())
}

func (r *Runtime) organizations() *organizations.Manager {
	return organizations.NewManager(r.aws.Organizations(), organizations.WithLogger(r.logger))
}

// customResource adapts h to the configured custom-resource protocol.
func (r *Runtime) customResource(h customresource.Handler) func(context.Context, cfn.Event) (any, error) {
	if r.protocol == config.ProtocolProvider {
		provider := customresource.Provider(h, r.logger)
		return func(ctx context.Context, event cfn.Event) (any, error) {
			return provider(ctx, event)
		}
	}
	wrapped := customresource.Wrap(h, r.logger)
	return func(ctx context.Context, event cfn.Event) (any, error) {
		return wrapped(ctx, event)
	}
}

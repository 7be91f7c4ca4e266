// Package securityhub delegates Security Hub administration to the audit account.
package securityhub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/securityhub"
	"github.com/aws/aws-sdk-go-v2/service/securityhub/types"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/helpers"
	"github.com/superwerker/superwerker/internal/organizations"
	"github.com/superwerker/superwerker/internal/retry"
)

// ServicePrincipal is the Organizations service principal of Security Hub.
const ServicePrincipal = "securityhub.amazonaws.com"

type API interface {
	ListOrganizationAdminAccounts(ctx context.Context, params *securityhub.ListOrganizationAdminAccountsInput, optFns ...func(*securityhub.Options)) (*securityhub.ListOrganizationAdminAccountsOutput, error)
	EnableSecurityHub(ctx context.Context, params *securityhub.EnableSecurityHubInput, optFns ...func(*securityhub.Options)) (*securityhub.EnableSecurityHubOutput, error)
	EnableOrganizationAdminAccount(ctx context.Context, params *securityhub.EnableOrganizationAdminAccountInput, optFns ...func(*securityhub.Options)) (*securityhub.EnableOrganizationAdminAccountOutput, error)
	DisableOrganizationAdminAccount(ctx context.Context, params *securityhub.DisableOrganizationAdminAccountInput, optFns ...func(*securityhub.Options)) (*securityhub.DisableOrganizationAdminAccountOutput, error)
}

type Properties struct {
	AdminAccountID string `json:"AdminAccountId" validate:"required"`
}

// ConflictingAdminError is returned when another account already administers Security Hub.
type ConflictingAdminError struct {
	Existing, Requested string
}

func (e *ConflictingAdminError) Error() string {
	return fmt.Sprintf("security hub delegated admin is already set to account %s, cannot delegate to %s", e.Existing, e.Requested)
}

// AdminStatusError is returned while the requested admin account is being disabled.
type AdminStatusError struct {
	AccountID string
	Status    types.AdminStatus
}

func (e *AdminStatusError) Error() string {
	return fmt.Sprintf("admin account %s is in %s", e.AccountID, e.Status)
}

// ErrMultipleAdmins is returned when the organization reports more than one admin account.
var ErrMultipleAdmins = errors.New("multiple security hub admin accounts in organization")

// enableAdminSchedule waits i² seconds before the i-th attempt.
func enableAdminSchedule() []time.Duration {
	schedule := make([]time.Duration, 10)
	for i := range schedule {
		schedule[i] = time.Duration(i*i) * time.Second
	}
	return schedule
}

type Handler struct {
	client  API
	orgs    *organizations.Manager
	retrier *retry.Retrier
}

type Option func(*Handler)

// WithRetrier replaces the retrier used for EnableOrganizationAdminAccount.
func WithRetrier(r *retry.Retrier) Option {
	return func(h *Handler) {
		h.retrier = r
	}
}

func New(client API, orgs *organizations.Manager, opts ...Option) *Handler {
	_inst := &Handler{client: client, orgs: orgs}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.retrier == nil {
		_inst.retrier = retry.New(
			retry.WithSchedule(enableAdminSchedule()...),
			retry.WithJitter(func() time.Duration { return 0 }),
			retry.WithRetryable(func(error) bool { return true }))
	}
	return _inst
}

func (h *Handler) Create(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	return h.enable(ctx, req)
}

func (h *Handler) Update(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	return h.enable(ctx, req)
}

func (h *Handler) Delete(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	var props Properties
	if err := req.Properties(&props); err != nil {
		return customresource.Response{}, err
	}
	admin, err := h.admin(ctx, props.AdminAccountID)
	if err != nil {
		return customresource.Response{}, err
	}
	if admin == nil || aws.ToString(admin.AccountId) != props.AdminAccountID {
		req.Logger.Info("security hub delegation is not configured for account, nothing to do",
			slog.String("adminAccountId", props.AdminAccountID))
		return customresource.Response{PhysicalResourceID: props.AdminAccountID}, nil
	}

	if _, err = h.client.DisableOrganizationAdminAccount(ctx, &securityhub.DisableOrganizationAdminAccountInput{
		AdminAccountId: aws.String(props.AdminAccountID),
	}); err != nil {
		return customresource.Response{}, errors.Wrap(err, "failed to disable security hub admin account")
	}

	registered, err := h.orgs.DelegatedAdministrator(ctx, props.AdminAccountID, ServicePrincipal)
	if err != nil {
		return customresource.Response{}, err
	}
	if !registered {
		req.Logger.Warn("account is not registered as delegated administrator", slog.String("adminAccountId", props.AdminAccountID))
		return customresource.Response{PhysicalResourceID: props.AdminAccountID}, nil
	}
	if err = h.orgs.DeregisterDelegatedAdministrator(ctx, props.AdminAccountID, ServicePrincipal); err != nil {
		return customresource.Response{}, err
	}
	return customresource.Response{PhysicalResourceID: props.AdminAccountID}, nil
}

func (h *Handler) enable(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	var props Properties
	if err := req.Properties(&props); err != nil {
		return customresource.Response{}, err
	}
	resp := customresource.Response{PhysicalResourceID: props.AdminAccountID}

	admin, err := h.admin(ctx, props.AdminAccountID)
	if err != nil {
		return customresource.Response{}, err
	}
	if admin != nil {
		existing := aws.ToString(admin.AccountId)
		if existing != props.AdminAccountID {
			return customresource.Response{}, &ConflictingAdminError{Existing: existing, Requested: props.AdminAccountID}
		}
		req.Logger.Info("account is already security hub admin", slog.String("adminAccountId", existing), slog.String("status", string(admin.Status)))
		return resp, nil
	}

	_, err = h.client.EnableSecurityHub(ctx, &securityhub.EnableSecurityHubInput{
		EnableDefaultStandards: aws.Bool(false),
	})
	if err != nil && !helpers.HasErrorCode(err, "ResourceConflictException") {
		return customresource.Response{}, errors.Wrap(err, "failed to enable security hub")
	}

	err = h.retrier.Do(ctx, "EnableOrganizationAdminAccount", func(ctx context.Context) error {
		_, err := h.client.EnableOrganizationAdminAccount(ctx, &securityhub.EnableOrganizationAdminAccountInput{
			AdminAccountId: aws.String(props.AdminAccountID),
		})
		return err
	})
	if err != nil {
		return customresource.Response{}, errors.Wrap(err, "failed to enable security hub admin account")
	}
	req.Logger.Info("security hub admin account enabled", slog.String("adminAccountId", props.AdminAccountID))
	return resp, nil
}

// admin returns the organization's admin account, or nil when none is set.
func (h *Handler) admin(ctx context.Context, requested string) (*types.AdminAccount, error) {
	var admins []types.AdminAccount
	paginator := securityhub.NewListOrganizationAdminAccountsPaginator(h.client, &securityhub.ListOrganizationAdminAccountsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list security hub admin accounts")
		}
		admins = append(admins, page.AdminAccounts...)
	}

	switch {
	case len(admins) == 0:
		return nil, nil
	case len(admins) > 1:
		return nil, ErrMultipleAdmins
	}
	admin := admins[0]
	if aws.ToString(admin.AccountId) == requested && admin.Status == types.AdminStatusDisableInProgress {
		return nil, &AdminStatusError{AccountID: requested, Status: admin.Status}
	}
	return &admin, nil
}

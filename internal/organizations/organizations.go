// Package organizations manages AWS Organizations policy types, policies and their
// attachment to the organization root.
package organizations

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/helpers"
	"github.com/superwerker/superwerker/internal/retry"
)

// API is the subset of the Organizations client used by the Manager.
type API interface {
	ListRoots(ctx context.Context, params *organizations.ListRootsInput, optFns ...func(*organizations.Options)) (*organizations.ListRootsOutput, error)
	EnablePolicyType(ctx context.Context, params *organizations.EnablePolicyTypeInput, optFns ...func(*organizations.Options)) (*organizations.EnablePolicyTypeOutput, error)
	ListPolicies(ctx context.Context, params *organizations.ListPoliciesInput, optFns ...func(*organizations.Options)) (*organizations.ListPoliciesOutput, error)
	ListPoliciesForTarget(ctx context.Context, params *organizations.ListPoliciesForTargetInput, optFns ...func(*organizations.Options)) (*organizations.ListPoliciesForTargetOutput, error)
	CreatePolicy(ctx context.Context, params *organizations.CreatePolicyInput, optFns ...func(*organizations.Options)) (*organizations.CreatePolicyOutput, error)
	AttachPolicy(ctx context.Context, params *organizations.AttachPolicyInput, optFns ...func(*organizations.Options)) (*organizations.AttachPolicyOutput, error)
	DetachPolicy(ctx context.Context, params *organizations.DetachPolicyInput, optFns ...func(*organizations.Options)) (*organizations.DetachPolicyOutput, error)
	DeletePolicy(ctx context.Context, params *organizations.DeletePolicyInput, optFns ...func(*organizations.Options)) (*organizations.DeletePolicyOutput, error)
	CreateOrganization(ctx context.Context, params *organizations.CreateOrganizationInput, optFns ...func(*organizations.Options)) (*organizations.CreateOrganizationOutput, error)
	ListDelegatedAdministrators(ctx context.Context, params *organizations.ListDelegatedAdministratorsInput, optFns ...func(*organizations.Options)) (*organizations.ListDelegatedAdministratorsOutput, error)
	DeregisterDelegatedAdministrator(ctx context.Context, params *organizations.DeregisterDelegatedAdministratorInput, optFns ...func(*organizations.Options)) (*organizations.DeregisterDelegatedAdministratorOutput, error)
}

// ErrNoRoot is returned when the organization has no root.
var ErrNoRoot = errors.New("organization has no root")

// Manager performs policy operations, retrying mutations on concurrent modification.
type Manager struct {
	client  API
	retrier *retry.Retrier
	logger  *slog.Logger
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.With("component", "organizations")
	}
}

func WithRetrier(r *retry.Retrier) Option {
	return func(m *Manager) {
		m.retrier = r
	}
}

func NewManager(client API, opts ...Option) *Manager {
	_inst := &Manager{
		client: client,
		logger: helpers.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.retrier == nil {
		_inst.retrier = retry.New(retry.WithLogger(_inst.logger))
	}
	return _inst
}

func (m *Manager) root(ctx context.Context) (types.Root, error) {
	out, err := m.client.ListRoots(ctx, &organizations.ListRootsInput{})
	if err != nil {
		return types.Root{}, errors.Wrap(err, "failed to list organization roots")
	}
	if len(out.Roots) == 0 {
		return types.Root{}, ErrNoRoot
	}
	return out.Roots[0], nil
}

// RootID returns the id of the organization root.
func (m *Manager) RootID(ctx context.Context) (string, error) {
	root, err := m.root(ctx)
	if err != nil {
		return "", err
	}
	return aws.ToString(root.Id), nil
}

// PolicyTypeEnabled reports whether policyType is ENABLED on the root.
func (m *Manager) PolicyTypeEnabled(ctx context.Context, policyType types.PolicyType) (bool, error) {
	root, err := m.root(ctx)
	if err != nil {
		return false, err
	}
	for _, pt := range root.PolicyTypes {
		if pt.Type == policyType && pt.Status == types.PolicyTypeStatusEnabled {
			return true, nil
		}
	}
	return false, nil
}

// EnablePolicyType enables policyType on the root unless it already is.
func (m *Manager) EnablePolicyType(ctx context.Context, policyType types.PolicyType) error {
	root, err := m.root(ctx)
	if err != nil {
		return err
	}
	for _, pt := range root.PolicyTypes {
		if pt.Type == policyType && pt.Status == types.PolicyTypeStatusEnabled {
			m.logger.Info("policy type already enabled", slog.String("policyType", string(policyType)))
			return nil
		}
	}

	err = m.retrier.Do(ctx, "EnablePolicyType", func(ctx context.Context) error {
		_, err := m.client.EnablePolicyType(ctx, &organizations.EnablePolicyTypeInput{
			RootId:     root.Id,
			PolicyType: policyType,
		})
		return err
	})
	if helpers.HasErrorCode(err, "PolicyTypeAlreadyEnabledException") {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to enable policy type %s", policyType)
	}
	m.logger.Info("policy type enabled", slog.String("policyType", string(policyType)))
	return nil
}

// FindPolicyByName returns the policy of the given type and name, or nil.
func (m *Manager) FindPolicyByName(ctx context.Context, policyType types.PolicyType, name string) (*types.PolicySummary, error) {
	paginator := organizations.NewListPoliciesPaginator(m.client, &organizations.ListPoliciesInput{
		Filter: policyType,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list policies")
		}
		for _, p := range page.Policies {
			if aws.ToString(p.Name) == name {
				return &p, nil
			}
		}
	}
	return nil, nil
}

// PolicyAttachedToRoot reports whether policyID is attached to the root.
func (m *Manager) PolicyAttachedToRoot(ctx context.Context, policyType types.PolicyType, policyID string) (bool, error) {
	rootID, err := m.RootID(ctx)
	if err != nil {
		return false, err
	}
	paginator := organizations.NewListPoliciesForTargetPaginator(m.client, &organizations.ListPoliciesForTargetInput{
		TargetId: aws.String(rootID),
		Filter:   policyType,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, errors.Wrap(err, "failed to list policies for root")
		}
		for _, p := range page.Policies {
			if aws.ToString(p.Id) == policyID {
				return true, nil
			}
		}
	}
	return false, nil
}

// CreatePolicy creates a policy and returns its id.
func (m *Manager) CreatePolicy(ctx context.Context, policyType types.PolicyType, name, description, content string) (string, error) {
	out, err := retry.Call(ctx, m.retrier, "CreatePolicy", func(ctx context.Context) (*organizations.CreatePolicyOutput, error) {
		return m.client.CreatePolicy(ctx, &organizations.CreatePolicyInput{
			Name:        aws.String(name),
			Description: aws.String(description),
			Content:     aws.String(content),
			Type:        policyType,
		})
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create policy %s", name)
	}
	if out.Policy == nil || out.Policy.PolicySummary == nil {
		return "", errors.Errorf("create policy %s returned no policy", name)
	}
	id := aws.ToString(out.Policy.PolicySummary.Id)
	m.logger.Info("policy created", slog.String("name", name), slog.String("policyId", id))
	return id, nil
}

// AttachToRoot attaches policyID to the root; an existing attachment is not an error.
func (m *Manager) AttachToRoot(ctx context.Context, policyID string) error {
	rootID, err := m.RootID(ctx)
	if err != nil {
		return err
	}
	err = m.retrier.Do(ctx, "AttachPolicy", func(ctx context.Context) error {
		_, err := m.client.AttachPolicy(ctx, &organizations.AttachPolicyInput{
			PolicyId: aws.String(policyID),
			TargetId: aws.String(rootID),
		})
		return err
	})
	if err != nil && !helpers.HasErrorCode(err, "DuplicatePolicyAttachmentException") {
		return errors.Wrapf(err, "failed to attach policy %s", policyID)
	}
	return nil
}

// DetachFromRoot detaches policyID from the root; a missing attachment is not an error.
func (m *Manager) DetachFromRoot(ctx context.Context, policyID string) error {
	rootID, err := m.RootID(ctx)
	if err != nil {
		return err
	}
	err = m.retrier.Do(ctx, "DetachPolicy", func(ctx context.Context) error {
		_, err := m.client.DetachPolicy(ctx, &organizations.DetachPolicyInput{
			PolicyId: aws.String(policyID),
			TargetId: aws.String(rootID),
		})
		return err
	})
	if err != nil && !helpers.HasErrorCode(err, "PolicyNotAttachedException", "PolicyNotFoundException") {
		return errors.Wrapf(err, "failed to detach policy %s", policyID)
	}
	return nil
}

// DeletePolicy deletes policyID; a policy that no longer exists is not an error.
func (m *Manager) DeletePolicy(ctx context.Context, policyID string) error {
	err := m.retrier.Do(ctx, "DeletePolicy", func(ctx context.Context) error {
		_, err := m.client.DeletePolicy(ctx, &organizations.DeletePolicyInput{
			PolicyId: aws.String(policyID),
		})
		return err
	})
	switch {
	case helpers.HasErrorCode(err, "PolicyNotFoundException"):
		m.logger.Info("policy already deleted", slog.String("policyId", policyID))
	case err != nil:
		return errors.Wrapf(err, "failed to delete policy %s", policyID)
	default:
		m.logger.Info("policy deleted", slog.String("policyId", policyID))
	}
	return nil
}

// CreateOrganization creates an organization with all features enabled. When the
// account already belongs to an organization, created is false and the id empty.
func (m *Manager) CreateOrganization(ctx context.Context) (id string, created bool, err error) {
	out, err := m.client.CreateOrganization(ctx, &organizations.CreateOrganizationInput{
		FeatureSet: types.OrganizationFeatureSetAll,
	})
	if helpers.HasErrorCode(err, "AlreadyInOrganizationException") {
		m.logger.Info("account is already part of an organization")
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "failed to create organization")
	}
	if out.Organization != nil {
		id = aws.ToString(out.Organization.Id)
	}
	return id, true, nil
}

// DelegatedAdministrator reports whether accountID is a delegated administrator of servicePrincipal.
func (m *Manager) DelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) (bool, error) {
	paginator := organizations.NewListDelegatedAdministratorsPaginator(m.client, &organizations.ListDelegatedAdministratorsInput{
		ServicePrincipal: aws.String(servicePrincipal),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, errors.Wrap(err, "failed to list delegated administrators")
		}
		for _, admin := range page.DelegatedAdministrators {
			if aws.ToString(admin.Id) == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

// DeregisterDelegatedAdministrator removes accountID as delegated administrator of servicePrincipal.
func (m *Manager) DeregisterDelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) error {
	err := m.retrier.Do(ctx, "DeregisterDelegatedAdministrator", func(ctx context.Context) error {
		_, err := m.client.DeregisterDelegatedAdministrator(ctx, &organizations.DeregisterDelegatedAdministratorInput{
			AccountId:        aws.String(accountID),
			ServicePrincipal: aws.String(servicePrincipal),
		})
		return err
	})
	if err != nil && !helpers.HasErrorCode(err, "AccountNotRegisteredException") {
		return errors.Wrapf(err, "failed to deregister delegated administrator %s", accountID)
	}
	return nil
}

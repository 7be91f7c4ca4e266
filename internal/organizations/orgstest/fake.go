// Package orgstest provides an in-memory Organizations API for tests.
package orgstest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"
)

// Policy is a policy stored by Fake.
type Policy struct {
	ID          string
	Name        string
	Description string
	Content     string
	Type        types.PolicyType
}

// Fake is an in-memory organization with a single root.
type Fake struct {
	mu sync.Mutex

	RootID       string
	EnabledTypes map[types.PolicyType]bool
	Policies     []Policy
	Attached     map[string]bool
	// DelegatedAdmins maps a service principal to its delegated administrator accounts.
	DelegatedAdmins map[string][]string
	InOrganization  bool
	// PageSize limits list results per page when positive.
	PageSize int
	// Failures are returned, in order, by the named operation before it succeeds.
	Failures map[string][]error
	Calls    []string

	nextID int
}

func NewFake() *Fake {
	return &Fake{
		RootID:          "r-root",
		EnabledTypes:    map[types.PolicyType]bool{},
		Attached:        map[string]bool{},
		DelegatedAdmins: map[string][]string{},
		Failures:        map[string][]error{},
	}
}

// AddPolicy stores a policy and returns its id.
func (f *Fake) AddPolicy(policyType types.PolicyType, name, content string, attached bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addPolicy(policyType, name, "", content, attached)
}

// PoliciesNamed returns the stored policies with the given name.
func (f *Fake) PoliciesNamed(name string) []Policy {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Policy
	for _, p := range f.Policies {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// IsAttached reports whether policyID is attached to the root.
func (f *Fake) IsAttached(policyID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Attached[policyID]
}

func (f *Fake) addPolicy(policyType types.PolicyType, name, description, content string, attached bool) string {
	f.nextID++
	id := fmt.Sprintf("p-%08d", f.nextID)
	f.Policies = append(f.Policies, Policy{ID: id, Name: name, Description: description, Content: content, Type: policyType})
	if attached {
		f.Attached[id] = true
	}
	return id
}

func (f *Fake) call(op string) error {
	f.Calls = append(f.Calls, op)
	if failures := f.Failures[op]; len(failures) > 0 {
		f.Failures[op] = failures[1:]
		return failures[0]
	}
	return nil
}

func (f *Fake) policyIndex(id string) int {
	return slices.IndexFunc(f.Policies, func(p Policy) bool { return p.ID == id })
}

func (f *Fake) page(total int, token *string) (start, end int, next *string) {
	if token != nil {
		start, _ = strconv.Atoi(*token)
	}
	end = total
	if f.PageSize > 0 && start+f.PageSize < total {
		end = start + f.PageSize
		next = aws.String(strconv.Itoa(end))
	}
	return start, end, next
}

func summary(p Policy) types.PolicySummary {
	return types.PolicySummary{
		Id:          aws.String(p.ID),
		Name:        aws.String(p.Name),
		Description: aws.String(p.Description),
		Type:        p.Type,
	}
}

func (f *Fake) ListRoots(_ context.Context, _ *organizations.ListRootsInput, _ ...func(*organizations.Options)) (*organizations.ListRootsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListRoots"); err != nil {
		return nil, err
	}
	root := types.Root{Id: aws.String(f.RootID)}
	for pt, enabled := range f.EnabledTypes {
		if enabled {
			root.PolicyTypes = append(root.PolicyTypes, types.PolicyTypeSummary{Type: pt, Status: types.PolicyTypeStatusEnabled})
		}
	}
	return &organizations.ListRootsOutput{Roots: []types.Root{root}}, nil
}

func (f *Fake) EnablePolicyType(_ context.Context, params *organizations.EnablePolicyTypeInput, _ ...func(*organizations.Options)) (*organizations.EnablePolicyTypeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("EnablePolicyType"); err != nil {
		return nil, err
	}
	if f.EnabledTypes[params.PolicyType] {
		return nil, &types.PolicyTypeAlreadyEnabledException{Message: aws.String("already enabled")}
	}
	f.EnabledTypes[params.PolicyType] = true
	return &organizations.EnablePolicyTypeOutput{}, nil
}

func (f *Fake) ListPolicies(_ context.Context, params *organizations.ListPoliciesInput, _ ...func(*organizations.Options)) (*organizations.ListPoliciesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListPolicies"); err != nil {
		return nil, err
	}
	var matching []types.PolicySummary
	for _, p := range f.Policies {
		if p.Type == params.Filter {
			matching = append(matching, summary(p))
		}
	}
	start, end, next := f.page(len(matching), params.NextToken)
	return &organizations.ListPoliciesOutput{Policies: matching[start:end], NextToken: next}, nil
}

func (f *Fake) ListPoliciesForTarget(_ context.Context, params *organizations.ListPoliciesForTargetInput, _ ...func(*organizations.Options)) (*organizations.ListPoliciesForTargetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListPoliciesForTarget"); err != nil {
		return nil, err
	}
	if aws.ToString(params.TargetId) != f.RootID {
		return nil, &types.TargetNotFoundException{Message: aws.String("target not found")}
	}
	var matching []types.PolicySummary
	for _, p := range f.Policies {
		if p.Type == params.Filter && f.Attached[p.ID] {
			matching = append(matching, summary(p))
		}
	}
	start, end, next := f.page(len(matching), params.NextToken)
	return &organizations.ListPoliciesForTargetOutput{Policies: matching[start:end], NextToken: next}, nil
}

func (f *Fake) CreatePolicy(_ context.Context, params *organizations.CreatePolicyInput, _ ...func(*organizations.Options)) (*organizations.CreatePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreatePolicy"); err != nil {
		return nil, err
	}
	name := aws.ToString(params.Name)
	for _, p := range f.Policies {
		if p.Name == name && p.Type == params.Type {
			return nil, &types.DuplicatePolicyException{Message: aws.String("duplicate policy")}
		}
	}
	id := f.addPolicy(params.Type, name, aws.ToString(params.Description), aws.ToString(params.Content), false)
	p := f.Policies[f.policyIndex(id)]
	s := summary(p)
	return &organizations.CreatePolicyOutput{Policy: &types.Policy{Content: aws.String(p.Content), PolicySummary: &s}}, nil
}

func (f *Fake) AttachPolicy(_ context.Context, params *organizations.AttachPolicyInput, _ ...func(*organizations.Options)) (*organizations.AttachPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("AttachPolicy"); err != nil {
		return nil, err
	}
	id := aws.ToString(params.PolicyId)
	if f.policyIndex(id) < 0 {
		return nil, &types.PolicyNotFoundException{Message: aws.String("policy not found")}
	}
	if f.Attached[id] {
		return nil, &types.DuplicatePolicyAttachmentException{Message: aws.String("already attached")}
	}
	f.Attached[id] = true
	return &organizations.AttachPolicyOutput{}, nil
}

func (f *Fake) DetachPolicy(_ context.Context, params *organizations.DetachPolicyInput, _ ...func(*organizations.Options)) (*organizations.DetachPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DetachPolicy"); err != nil {
		return nil, err
	}
	id := aws.ToString(params.PolicyId)
	if f.policyIndex(id) < 0 {
		return nil, &types.PolicyNotFoundException{Message: aws.String("policy not found")}
	}
	if !f.Attached[id] {
		return nil, &types.PolicyNotAttachedException{Message: aws.String("policy not attached")}
	}
	delete(f.Attached, id)
	return &organizations.DetachPolicyOutput{}, nil
}

func (f *Fake) DeletePolicy(_ context.Context, params *organizations.DeletePolicyInput, _ ...func(*organizations.Options)) (*organizations.DeletePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeletePolicy"); err != nil {
		return nil, err
	}
	id := aws.ToString(params.PolicyId)
	i := f.policyIndex(id)
	if i < 0 {
		return nil, &types.PolicyNotFoundException{Message: aws.String("policy not found")}
	}
	if f.Attached[id] {
		return nil, &types.PolicyInUseException{Message: aws.String("policy in use")}
	}
	f.Policies = slices.Delete(f.Policies, i, i+1)
	return &organizations.DeletePolicyOutput{}, nil
}

func (f *Fake) CreateOrganization(_ context.Context, _ *organizations.CreateOrganizationInput, _ ...func(*organizations.Options)) (*organizations.CreateOrganizationOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateOrganization"); err != nil {
		return nil, err
	}
	if f.InOrganization {
		return nil, &types.AlreadyInOrganizationException{Message: aws.String("already in organization")}
	}
	f.InOrganization = true
	return &organizations.CreateOrganizationOutput{Organization: &types.Organization{Id: aws.String("o-fake")}}, nil
}

func (f *Fake) ListDelegatedAdministrators(_ context.Context, params *organizations.ListDelegatedAdministratorsInput, _ ...func(*organizations.Options)) (*organizations.ListDelegatedAdministratorsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListDelegatedAdministrators"); err != nil {
		return nil, err
	}
	var admins []types.DelegatedAdministrator
	for _, id := range f.DelegatedAdmins[aws.ToString(params.ServicePrincipal)] {
		admins = append(admins, types.DelegatedAdministrator{Id: aws.String(id)})
	}
	return &organizations.ListDelegatedAdministratorsOutput{DelegatedAdministrators: admins}, nil
}

func (f *Fake) DeregisterDelegatedAdministrator(_ context.Context, params *organizations.DeregisterDelegatedAdministratorInput, _ ...func(*organizations.Options)) (*organizations.DeregisterDelegatedAdministratorOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeregisterDelegatedAdministrator"); err != nil {
		return nil, err
	}
	principal := aws.ToString(params.ServicePrincipal)
	accounts := f.DelegatedAdmins[principal]
	i := slices.Index(accounts, aws.ToString(params.AccountId))
	if i < 0 {
		return nil, &types.AccountNotRegisteredException{Message: aws.String("account not registered")}
	}
	f.DelegatedAdmins[principal] = slices.Delete(accounts, i, i+1)
	return &organizations.DeregisterDelegatedAdministratorOutput{}, nil
}

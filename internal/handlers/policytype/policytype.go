// Package policytype enables an Organizations policy type on the organization root.
package policytype

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/organizations/types"

	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/organizations"
)

// Handler enables its policy type on Create and leaves it enabled afterwards.
type Handler struct {
	customresource.NoopUpdate
	customresource.NoopDelete

	orgs       *organizations.Manager
	policyType types.PolicyType
}

func New(orgs *organizations.Manager, policyType types.PolicyType) *Handler {
	return &Handler{orgs: orgs, policyType: policyType}
}

// PhysicalResourceID returns the constant id of the resource for policyType.
func PhysicalResourceID(policyType types.PolicyType) string {
	if policyType == types.PolicyTypeServiceControlPolicy {
		return "SCP"
	}
	return string(policyType)
}

func (h *Handler) Create(ctx context.Context, _ customresource.Request) (customresource.Response, error) {
	if err := h.orgs.EnablePolicyType(ctx, h.policyType); err != nil {
		return customresource.Response{}, err
	}
	return customresource.Response{PhysicalResourceID: PhysicalResourceID(h.policyType)}, nil
}

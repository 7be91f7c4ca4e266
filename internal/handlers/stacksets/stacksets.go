// Package stacksets activates trusted access between CloudFormation StackSets and Organizations.
package stacksets

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/customresource"
)

// PhysicalResourceID is the constant id of the resource.
const PhysicalResourceID = "StackSetsOrgAccess"

type API interface {
	DescribeOrganizationsAccess(ctx context.Context, params *cloudformation.DescribeOrganizationsAccessInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeOrganizationsAccessOutput, error)
	ActivateOrganizationsAccess(ctx context.Context, params *cloudformation.ActivateOrganizationsAccessInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ActivateOrganizationsAccessOutput, error)
}

// Handler activates trusted access on Create; it is never deactivated.
type Handler struct {
	customresource.NoopUpdate
	customresource.NoopDelete

	client API
}

func New(client API) *Handler {
	return &Handler{client: client}
}

func (h *Handler) Create(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	out, err := h.client.DescribeOrganizationsAccess(ctx, &cloudformation.DescribeOrganizationsAccessInput{})
	if err != nil {
		return customresource.Response{}, errors.Wrap(err, "failed to describe organizations access")
	}
	if out.Status == types.OrganizationStatusEnabled {
		req.Logger.Info("stack sets organizations access already enabled")
		return customresource.Response{PhysicalResourceID: PhysicalResourceID}, nil
	}

	if _, err = h.client.ActivateOrganizationsAccess(ctx, &cloudformation.ActivateOrganizationsAccessInput{}); err != nil {
		return customresource.Response{}, errors.Wrap(err, "failed to activate organizations access")
	}
	req.Logger.Info("stack sets organizations access activated", slog.String("previousStatus", string(out.Status)))
	return customresource.Response{PhysicalResourceID: PhysicalResourceID}, nil
}

// Package policy manages a named Organizations policy attached to the organization root.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"

	"github.com/superwerker/superwerker/internal/customresource"
	"github.com/superwerker/superwerker/internal/helpers"
	"github.com/superwerker/superwerker/internal/organizations"
)

// Properties of the managed policy resource.
type Properties struct {
	Policy string              `json:"Policy" validate:"required"`
	Attach customresource.Bool `json:"Attach"`
	Name   string              `json:"Name"`
}

// Handler creates, replaces and deletes one policy per resource.
type Handler struct {
	orgs        *organizations.Manager
	policyType  types.PolicyType
	defaultName string
}

type Option func(*Handler)

// WithDefaultName names the policy when the Name property is empty.
// Without it, the logical resource id is used.
func WithDefaultName(name string) Option {
	return func(h *Handler) {
		h.defaultName = name
	}
}

func New(orgs *organizations.Manager, policyType types.PolicyType, opts ...Option) *Handler {
	_inst := &Handler{orgs: orgs, policyType: policyType}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

func (h *Handler) name(req customresource.Request, props Properties) string {
	return helpers.FirstNonEmpty(props.Name, h.defaultName, req.LogicalResourceID)
}

func (h *Handler) Create(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	var props Properties
	if err := req.Properties(&props); err != nil {
		return customresource.Response{}, err
	}
	name := h.name(req, props)

	existing, err := h.orgs.FindPolicyByName(ctx, h.policyType, name)
	if err != nil {
		return customresource.Response{}, err
	}
	if existing != nil {
		id := aws.ToString(existing.Id)
		req.Logger.Info("policy already exists", slog.String("name", name), slog.String("policyId", id))
		if props.Attach {
			if err = h.attach(ctx, id); err != nil {
				return customresource.Response{}, err
			}
		}
		return customresource.Response{PhysicalResourceID: id}, nil
	}

	id, err := h.create(ctx, req, props, name)
	if err != nil {
		return customresource.Response{}, err
	}
	return customresource.Response{PhysicalResourceID: id}, nil
}

// Update replaces the same-named policy with a new one holding the current content.
func (h *Handler) Update(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	var props Properties
	if err := req.Properties(&props); err != nil {
		return customresource.Response{}, err
	}
	name := h.name(req, props)

	existing, err := h.orgs.FindPolicyByName(ctx, h.policyType, name)
	if err != nil {
		return customresource.Response{}, err
	}
	if existing != nil {
		if err = h.remove(ctx, aws.ToString(existing.Id)); err != nil {
			return customresource.Response{}, err
		}
	}

	id, err := h.create(ctx, req, props, name)
	if err != nil {
		return customresource.Response{}, err
	}
	return customresource.Response{PhysicalResourceID: id}, nil
}

func (h *Handler) Delete(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	id := req.PhysicalResourceID
	if !strings.HasPrefix(id, "p-") {
		req.Logger.Info("physical resource id is not a policy id, nothing to delete")
		return customresource.Response{PhysicalResourceID: id}, nil
	}
	if err := h.remove(ctx, id); err != nil {
		return customresource.Response{}, err
	}
	return customresource.Response{PhysicalResourceID: id}, nil
}

func (h *Handler) create(ctx context.Context, req customresource.Request, props Properties, name string) (string, error) {
	description := fmt.Sprintf("superwerker - %s", req.LogicalResourceID)
	id, err := h.orgs.CreatePolicy(ctx, h.policyType, name, description, props.Policy)
	if err != nil {
		return "", err
	}
	if props.Attach {
		if err = h.orgs.AttachToRoot(ctx, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (h *Handler) attach(ctx context.Context, id string) error {
	attached, err := h.orgs.PolicyAttachedToRoot(ctx, h.policyType, id)
	if err != nil || attached {
		return err
	}
	return h.orgs.AttachToRoot(ctx, id)
}

func (h *Handler) remove(ctx context.Context, id string) error {
	attached, err := h.orgs.PolicyAttachedToRoot(ctx, h.policyType, id)
	if err != nil {
		return err
	}
	if attached {
		if err = h.orgs.DetachFromRoot(ctx, id); err != nil {
			return err
		}
	}
	return h.orgs.DeletePolicy(ctx, id)
}

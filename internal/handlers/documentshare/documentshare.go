// Package documentshare shares an SSM document with all AWS accounts.
package documentshare

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/customresource"
)

const allAccounts = "All"

type API interface {
	ModifyDocumentPermission(ctx context.Context, params *ssm.ModifyDocumentPermissionInput, optFns ...func(*ssm.Options)) (*ssm.ModifyDocumentPermissionOutput, error)
}

type Properties struct {
	DocumentName string `json:"DocumentName" validate:"required"`
}

// Handler makes the document public while the resource exists.
type Handler struct {
	client API
}

func New(client API) *Handler {
	return &Handler{client: client}
}

func (h *Handler) Create(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	return h.share(ctx, req, true)
}

func (h *Handler) Update(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	return h.share(ctx, req, true)
}

func (h *Handler) Delete(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	return h.share(ctx, req, false)
}

func (h *Handler) share(ctx context.Context, req customresource.Request, public bool) (customresource.Response, error) {
	var props Properties
	if err := req.Properties(&props); err != nil {
		return customresource.Response{}, err
	}

	input := &ssm.ModifyDocumentPermissionInput{
		Name:           aws.String(props.DocumentName),
		PermissionType: types.DocumentPermissionTypeShare,
	}
	if public {
		input.AccountIdsToAdd = []string{allAccounts}
	} else {
		input.AccountIdsToRemove = []string{allAccounts}
	}
	if _, err := h.client.ModifyDocumentPermission(ctx, input); err != nil {
		return customresource.Response{}, errors.Wrapf(err, "failed to modify permissions of document %s", props.DocumentName)
	}
	req.Logger.Info("document permissions modified", slog.String("document", props.DocumentName), slog.Bool("public", public))
	return customresource.Response{PhysicalResourceID: props.DocumentName}, nil
}

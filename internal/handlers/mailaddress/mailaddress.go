// Package mailaddress generates the root mail addresses of new accounts.
package mailaddress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/superwerker/superwerker/internal/customresource"
)

// MaxLength is the longest account email Control Tower accepts.
const MaxLength = 64

// AttributeEmail is the response attribute holding the generated address.
const AttributeEmail = "Email"

// TooLongError is returned when the domain leaves no room for a unique address.
type TooLongError struct {
	Address string
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("unable to generate email address with more than %d characters: %s", MaxLength, e.Address)
}

type Properties struct {
	Domain string `json:"Domain" validate:"required"`
	Name   string `json:"Name" validate:"required"`
}

type Handler struct {
	customresource.NoopDelete

	newID func() string
}

type Option func(*Handler)

// WithIDGenerator replaces the random uuid source.
func WithIDGenerator(fn func() string) Option {
	return func(h *Handler) {
		h.newID = fn
	}
}

func New(opts ...Option) *Handler {
	_inst := &Handler{newID: uuid.NewString}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// Generate returns root+<id>@domain, shortening id so the address fits MaxLength.
func (h *Handler) Generate(domain string) (string, error) {
	available := MaxLength - (len(domain) + len("@") + len("root+"))
	id := h.newID()
	if available < 0 {
		available = 0
	}
	if len(id) > available {
		id = id[:available]
	}

	address := fmt.Sprintf("root+%s@%s", id, domain)
	if len(address) > MaxLength {
		return "", &TooLongError{Address: address}
	}
	return address, nil
}

func (h *Handler) Create(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	return h.generate(ctx, req)
}

func (h *Handler) Update(ctx context.Context, req customresource.Request) (customresource.Response, error) {
	return h.generate(ctx, req)
}

func (h *Handler) generate(_ context.Context, req customresource.Request) (customresource.Response, error) {
	var props Properties
	if err := req.Properties(&props); err != nil {
		return customresource.Response{}, err
	}

	address, err := h.Generate(props.Domain)
	if err != nil {
		return customresource.Response{}, err
	}
	req.Logger.Info("created new email for account", slog.String("email", address))

	return customresource.Response{
		PhysicalResourceID: fmt.Sprintf("%s@%s", props.Name, props.Domain),
		Data:               map[string]any{AttributeEmail: address},
	}, nil
}

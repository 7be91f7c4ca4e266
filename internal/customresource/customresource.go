// Package customresource implements the CloudFormation custom-resource contract shared by
// every superwerker handler: dispatch by request type, physical resource id correlation,
// and log-then-return failure semantics.
package customresource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/superwerker/superwerker/internal/helpers"
)

// Request is a single custom-resource invocation.
type Request struct {
	cfn.Event
	Logger *slog.Logger
}

// Response is returned to CloudFormation. PhysicalResourceID correlates Update and
// Delete requests with the resource created earlier.
type Response struct {
	PhysicalResourceID string         `json:"PhysicalResourceId,omitempty"`
	Data               map[string]any `json:"Data,omitempty"`
}

// Handler implements the lifecycle of one custom resource type.
type Handler interface {
	Create(ctx context.Context, req Request) (Response, error)
	Update(ctx context.Context, req Request) (Response, error)
	Delete(ctx context.Context, req Request) (Response, error)
}

// UnexpectedRequestTypeError is returned for request types other than Create, Update and Delete.
type UnexpectedRequestTypeError struct {
	RequestType cfn.RequestType
}

func (e *UnexpectedRequestTypeError) Error() string {
	return fmt.Sprintf("unexpected request type: %q", e.RequestType)
}

// NoopUpdate can be embedded by handlers whose resource has nothing to update.
type NoopUpdate struct{}

// Update keeps the existing physical resource id.
func (NoopUpdate) Update(context.Context, Request) (Response, error) { return Response{}, nil }

// NoopDelete can be embedded by handlers whose resource must survive stack deletion.
type NoopDelete struct{}

// Delete keeps the existing physical resource id.
func (NoopDelete) Delete(context.Context, Request) (Response, error) { return Response{}, nil }

// Dispatch routes the event to the handler method matching its request type.
// Failures are logged together with the full event and returned unchanged.
func Dispatch(ctx context.Context, h Handler, event cfn.Event, logger *slog.Logger) (Response, error) {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}
	logger = logger.With(
		slog.String("requestType", string(event.RequestType)),
		slog.String("logicalResourceId", event.LogicalResourceID),
		slog.String("physicalResourceId", event.PhysicalResourceID))
	req := Request{Event: event, Logger: logger}

	logger.Info("handling custom resource request...")
	var (
		resp Response
		err  error
	)
	switch event.RequestType {
	case cfn.RequestCreate:
		resp, err = h.Create(ctx, req)
	case cfn.RequestUpdate:
		resp, err = h.Update(ctx, req)
	case cfn.RequestDelete:
		resp, err = h.Delete(ctx, req)
	default:
		err = &UnexpectedRequestTypeError{RequestType: event.RequestType}
	}
	if err != nil {
		logger.Error("custom resource request failed", slog.Any("error", err), slog.Any("event", logEvent(event)))
		return resp, err
	}

	if resp.PhysicalResourceID == "" && event.RequestType != cfn.RequestCreate {
		resp.PhysicalResourceID = event.PhysicalResourceID
	}
	logger.Info("custom resource request handled", slog.String("result", resp.PhysicalResourceID))
	return resp, nil
}

// LambdaFunction adapts a Handler to cfn.CustomResourceFunction.
func LambdaFunction(h Handler, logger *slog.Logger) cfn.CustomResourceFunction {
	return func(ctx context.Context, event cfn.Event) (string, map[string]any, error) {
		resp, err := Dispatch(ctx, h, event, logger)
		return resp.PhysicalResourceID, resp.Data, err
	}
}

// Wrap returns a Lambda entry point that reports the outcome to the
// pre-signed ResponseURL of the event.
func Wrap(h Handler, logger *slog.Logger) cfn.CustomResourceLambdaFunction {
	return cfn.LambdaWrap(LambdaFunction(h, logger))
}

// Provider returns a Lambda entry point for the CDK provider framework, which
// expects the response as the return value and reports to CloudFormation itself.
func Provider(h Handler, logger *slog.Logger) func(context.Context, cfn.Event) (Response, error) {
	return func(ctx context.Context, event cfn.Event) (Response, error) {
		return Dispatch(ctx, h, event, logger)
	}
}

// logEvent drops the pre-signed response URL, which grants write access to the stack.
func logEvent(event cfn.Event) cfn.Event {
	event.ResponseURL = ""
	return event
}

package cmd

import (
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/helpers"
	"github.com/superwerker/superwerker/internal/runtime"
)

// ErrNoHandler is returned when neither an argument nor the environment names a function.
var ErrNoHandler = errors.New("no handler given")

var lambdaEnvMapString = map[*string]boundEnvVar[string]{
	&config.Lambda.Protocol: {
		Name:        "lambda-protocol",
		Description: "How custom-resource results reach CloudFormation. Supported values are 'response-url' and 'provider'",
	},
	&config.Lambda.Handler: {
		Name:        "lambda-handler",
		Description: "The function to serve when no argument is given",
		Env:         helpers.Ptr("_HANDLER"),
	},
}

func cmdLambda() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "lambda [handler]",
		Short:     "Serve a superwerker function in the Lambda runtime",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: runtime.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := config.Lambda.Handler
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return ErrNoHandler
			}

			h, err := lambdaHandler(cmd, name)
			if err != nil {
				return errors.Wrapf(err, "failed to setup lambda %s", name)
			}

			logger.Info("lambda starting...", slog.String("handler", name))
			lambda.StartWithOptions(h, lambda.WithContext(cmd.Context()))
			return nil
		},
	}

	bindEnvMap(cmd, lambdaEnvMapString)
	return cmd
}

func lambdaHandler(cmd *cobra.Command, name string) (any, error) {
	env, err := config.LoadEnvironment()
	if err != nil {
		return nil, err
	}
	ctrl, err := newController(cmd, helpers.FirstNonEmpty(config.Global.Region, env.Region))
	if err != nil {
		return nil, err
	}

	logger.Debug("creating runtime...")
	rt := runtime.NewRuntime(ctrl, env,
		runtime.WithLogger(logger.With("component", "runtime", "handler", name)),
		runtime.WithProtocol(config.Lambda.Protocol))
	return rt.Handler(name)
}

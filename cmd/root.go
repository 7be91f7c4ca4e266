// Package cmd provides the entrypoint for the superwerker cli.
package cmd

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/superwerker/superwerker/internal/config"
	awsctl "github.com/superwerker/superwerker/internal/controllers/aws"
	"github.com/superwerker/superwerker/internal/helpers"
)

// ConfigFileEnv names the variable pointing at the configuration file.
const ConfigFileEnv = "SUPERWERKER_CONFIG"

var (
	configFilePath string
	logger         = helpers.NewNoopLogger()
)

type boundEnvVar[T argType] struct {
	Name, Description string
	Env, Short        *string
	Hidden            bool
}

// New returns the root command for superwerker.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "superwerker",
		Short:         "Landing zone automation for AWS Control Tower organizations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger = helpers.NewLogger(cmd.ErrOrStderr(), config.Global.Logging.Verbosity, config.Global.Logging.CallerTrace)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// The Lambda custom runtime starts the binary without arguments.
			if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
				return cmdLambda().RunE(cmd, args)
			}
			return cmd.Help()
		},
	}

	// Configuration loading & defaults
	configFilePath = helpers.FirstNonEmpty(os.Getenv(ConfigFileEnv), "superwerker.yaml")
	if err := errors.Join(
		config.LoadFromFile(configFilePath),
		config.SetDefaults(),
	); err != nil {
		panic(err)
	}

	// Dynamic flags
	setupDynamicFlags(cmd)

	// Subcommands
	cmd.AddCommand(
		cmdLambda(),
		cmdConsoleURL(),
		cmdBootstrapRegions(),
		cmdDocs(),
		cmdLandingZoneEvent(),
	)

	return cmd
}

func setupDynamicFlags(cmd *cobra.Command) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(replacer)

	bindEnvMap(cmd, envMapString)
	bindEnvMap(cmd, envMapBool)
	bindEnvMap(cmd, envMapCount)
}

func newController(cmd *cobra.Command, region string) (*awsctl.Controller, error) {
	logger.Debug("creating AWS controller...", slog.String("region", region))
	return awsctl.NewController(
		awsctl.WithContext(cmd.Context()),
		awsctl.WithLogger(logger),
		awsctl.WithRegion(region))
}

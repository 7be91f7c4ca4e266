package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/console"
)

var consoleEnvMapString = map[*string]boundEnvVar[string]{
	&config.Console.Destination: {
		Name:        "console-destination",
		Description: "The console page to open after signing in",
	},
	&config.Console.Issuer: {
		Name:        "console-issuer",
		Description: "The issuer shown in the console when the session expires",
	},
}

var consoleEnvMapDuration = map[*time.Duration]boundEnvVar[time.Duration]{
	&config.Console.SessionDuration: {
		Name:        "console-session-duration",
		Description: "The lifetime of the console session",
	},
}

func cmdConsoleURL() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "console-url",
		Aliases: []string{"login"},
		Short:   "Print a federated AWS console sign-in URL for the current credentials",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := newController(cmd, config.Global.Region)
			if err != nil {
				return err
			}
			builder := console.New(ctrl.Config().Credentials, ctrl.STS(),
				console.WithLogger(logger),
				console.WithDestination(config.Console.Destination),
				console.WithIssuer(config.Console.Issuer),
				console.WithSessionDuration(config.Console.SessionDuration))

			url, err := builder.URL(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "failed to build console sign-in URL")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), url)
			return err
		},
	}

	bindEnvMap(cmd, consoleEnvMapString)
	bindEnvMap(cmd, consoleEnvMapDuration)
	return cmd
}

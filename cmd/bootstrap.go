package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/regions"
)

var bootstrapEnvMapString = map[*string]boundEnvVar[string]{
	&config.Bootstrap.Template: {
		Name:        "bootstrap-template",
		Description: "The CloudFormation template deployed into every region",
	},
	&config.Bootstrap.StackName: {
		Name:        "bootstrap-stack-name",
		Description: "The name of the bootstrap stack",
	},
}

var bootstrapEnvMapStringSlice = map[*[]string]boundEnvVar[[]string]{
	&config.Bootstrap.Regions: {
		Name:        "bootstrap-regions",
		Description: "The regions to deploy into. Defaults to every region superwerker supports",
	},
}

var bootstrapEnvMapFloat = map[*float64]boundEnvVar[float64]{
	&config.Bootstrap.Rate: {
		Name:        "bootstrap-rate",
		Description: "The number of region deployments started per second",
	},
}

var bootstrapEnvMapDuration = map[*time.Duration]boundEnvVar[time.Duration]{
	&config.Bootstrap.Timeout: {
		Name:        "bootstrap-timeout",
		Description: "The maximum time to wait for a single region",
	},
}

func cmdBootstrapRegions() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap-regions [region...]",
		Short: "Deploy the asset bootstrap stack into every region",
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := os.ReadFile(filepath.Clean(config.Bootstrap.Template))
			if err != nil {
				return errors.Wrap(err, "failed to read bootstrap template")
			}
			ctrl, err := newController(cmd, config.Global.Region)
			if err != nil {
				return err
			}

			targets := config.Bootstrap.Regions
			if len(args) > 0 {
				targets = args
			}
			deployer := regions.New(func(region string) regions.API {
				return ctrl.ForRegion(region).CloudFormation()
			}, config.Bootstrap.StackName, string(template),
				regions.WithLogger(logger),
				regions.WithRate(config.Bootstrap.Rate),
				regions.WithTimeout(config.Bootstrap.Timeout))
			return deployer.Deploy(cmd.Context(), targets)
		},
	}

	bindEnvMap(cmd, bootstrapEnvMapString)
	bindEnvMap(cmd, bootstrapEnvMapStringSlice)
	bindEnvMap(cmd, bootstrapEnvMapFloat)
	bindEnvMap(cmd, bootstrapEnvMapDuration)
	return cmd
}

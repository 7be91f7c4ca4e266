package cmd

import (
	"github.com/spf13/cobra"

	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/landingzone"
)

var landingZoneEnvMapString = map[*string]boundEnvVar[string]{
	&config.LandingZone.EventBus: {
		Name:        "landing-zone-event-bus",
		Description: "The event bus receiving the event",
	},
	&config.LandingZone.Source: {
		Name:        "landing-zone-source",
		Description: "The event source. Sources in the reserved 'aws.' namespace are rejected by EventBridge",
	},
	&config.LandingZone.State: {
		Name:        "landing-zone-state",
		Description: "The reported landing zone state. Supported values are 'SUCCEEDED' and 'FAILED'",
	},
}

func cmdLandingZoneEvent() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "landing-zone-event",
		Short: "Put a synthetic SetupLandingZone event to re-run the post-setup automation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := newController(cmd, config.Global.Region)
			if err != nil {
				return err
			}
			return landingzone.New(ctrl.EventBridge(),
				landingzone.WithLogger(logger),
				landingzone.WithEventBus(config.LandingZone.EventBus),
				landingzone.WithSource(config.LandingZone.Source)).
				Emit(cmd.Context(), config.LandingZone.State)
		},
	}

	bindEnvMap(cmd, landingZoneEnvMapString)
	return cmd
}

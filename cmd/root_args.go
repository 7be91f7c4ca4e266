package cmd

import (
	"github.com/superwerker/superwerker/internal/config"
	"github.com/superwerker/superwerker/internal/helpers"
)

var envMapString = map[*string]boundEnvVar[string]{
	&config.Global.Region: {
		Name:        "region",
		Description: "The AWS region to use instead of the one of the default configuration chain",
		Short:       helpers.Ptr("r"),
		Env:         helpers.Ptr("SUPERWERKER_REGION"),
	},
}

var envMapBool = map[*bool]boundEnvVar[bool]{
	&config.Global.Logging.CallerTrace: {
		Name:        "verbosity-caller-trace",
		Description: "Enable caller trace in logs",
		Short:       helpers.Ptr("V"),
	},
}

var envMapCount = map[*int]boundEnvVar[int]{
	&config.Global.Logging.Verbosity: {
		Name:        "verbosity",
		Description: "Increase logger verbosity (default WarnLevel)",
		Short:       helpers.Ptr("v"),
	},
}

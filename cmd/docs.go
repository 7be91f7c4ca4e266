package cmd

import (
	"github.com/spf13/cobra"

	"github.com/superwerker/superwerker/internal/cfndocs"
	"github.com/superwerker/superwerker/internal/config"
)

var docsEnvMapString = map[*string]boundEnvVar[string]{
	&config.Docs.Output: {
		Name:        "docs-output",
		Description: "The directory the generated documentation is written to",
	},
}

var docsEnvMapStringSlice = map[*[]string]boundEnvVar[[]string]{
	&config.Docs.Templates: {
		Name:        "docs-templates",
		Description: "Glob patterns of the CloudFormation templates to document",
	},
}

func cmdDocs() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Generate documentation from the CloudFormation templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "parameters",
		Short: "Generate AsciiDoc parameter tables",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return cfndocs.Generate(config.Docs.Templates, config.Docs.Output, logger)
		},
	})

	bindEnvMap(cmd, docsEnvMapString)
	bindEnvMap(cmd, docsEnvMapStringSlice)
	return cmd
}

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ccrouter/ccr/pkg/config"
)

func newConfigCommand(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect CCR's merged configuration",
	}
	cmd.AddCommand(
		newConfigShowCommand(deps),
		newConfigValidateCommand(deps),
	)
	return cmd
}

func newConfigShowCommand(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after merging defaults, env, flags and file sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := deps.Manager.Get()
			out := cmd.OutOrStdout()
			for _, line := range flattenConfig(cfg) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newConfigValidateCommand(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration against its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := deps.Manager.Get()
			if err := deps.Manager.Service.Validate(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}

// flattenConfig renders cfg as sorted "dotted.key = value" lines, a
// stripped-down version of the upstream orchestrator's flattenConfig that
// drops its Server/Database/Temporal sections and the URL/secret redaction
// those sections needed - CCR's Router/Registry/Logger/CLI sections carry no
// credentials, only provider,model strings and filesystem paths.
func flattenConfig(cfg *config.Config) []string {
	if cfg == nil {
		return nil
	}
	rows := map[string]string{
		"router.default":               cfg.Router.Default,
		"router.background":            cfg.Router.Background,
		"router.think":                 cfg.Router.Think,
		"router.longcontext":           cfg.Router.LongContext,
		"router.websearch":             cfg.Router.WebSearch,
		"router.longcontextthreshold":  fmt.Sprintf("%d", cfg.Router.LongContextThreshold),
		"router.customrouterpath":      cfg.Router.CustomRouterPath,
		"registry.projectsfilepath":    cfg.Registry.ProjectsFilePath,
		"registry.claudeprojectsroot":  cfg.Registry.ClaudeProjectsRoot,
		"logger.level":                 cfg.Logger.Level,
		"logger.json":                  fmt.Sprintf("%t", cfg.Logger.JSON),
		"cli.filewatchinterval":        cfg.CLI.FileWatchInterval.String(),
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s = %s", k, rows[k]))
	}
	return lines
}

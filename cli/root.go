// Package cli assembles CCR's cobra command tree: project registry
// management (add/list/scan/configure/rm/model) and configuration
// diagnostics (show/validate), grounded on the upstream orchestrator's
// cli/cmd/config command structure but without its HTTP-API executor,
// since CCR has no server to dispatch to - every command talks directly to
// the local registry and config packages.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ccrouter/ccr/engine/registry"
	"github.com/ccrouter/ccr/pkg/config"
)

// Dependencies bundles what every subcommand needs: the registry store and
// the config manager, both already initialized by cmd/ccr/main.go.
type Dependencies struct {
	Registry *registry.Store
	Manager  *config.Manager
}

// NewRootCommand builds the "ccr" command tree.
func NewRootCommand(deps *Dependencies) *cobra.Command {
	root := &cobra.Command{
		Use:           "ccr",
		Short:         "CCR routes LLM API requests to the right model",
		Long:          "ccr manages the project/agent/workflow registry that drives CCR's request router.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newProjectCommand(deps))
	root.AddCommand(newConfigCommand(deps))
	return root
}

func ctxOrBackground(cmd *cobra.Command) context.Context {
	if cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccrouter/ccr/engine/ccrerr"
	"github.com/ccrouter/ccr/engine/registry"
	"github.com/ccrouter/ccr/engine/validate"
)

func newProjectCommand(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage the agent/workflow project registry",
	}
	cmd.AddCommand(
		newProjectAddCommand(deps),
		newProjectListCommand(deps),
		newProjectScanCommand(deps),
		newProjectConfigureCommand(deps),
		newProjectRemoveCommand(deps),
		newProjectModelCommand(deps),
	)
	return cmd
}

func newProjectAddCommand(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Register a project directory, discovering its agents and workflows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOrBackground(cmd)
			project, err := deps.Registry.AddProject(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered project %s (%s): %d agents, %d workflows\n",
				project.Name, project.ID, len(project.Agents), len(project.Workflows))
			return nil
		},
	}
}

func newProjectListCommand(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := ctxOrBackground(cmd)
			projects, err := deps.Registry.ListProjects(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range projects {
				fmt.Fprintf(out, "%s\t%s\t%s\t%d agents\t%d workflows\n",
					p.ID, p.Name, p.Path, len(p.Agents), len(p.Workflows))
			}
			return nil
		},
	}
}

func newProjectScanCommand(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <id>",
		Short: "Re-discover a project's agents and workflows, preserving assigned models",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOrBackground(cmd)
			if !validate.IsValidAgentId(args[0]) {
				return ccrerr.New(ccrerr.Invalid, "project id must be a UUIDv4", nil, map[string]any{"id": args[0]})
			}
			project, err := deps.Registry.ScanProject(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rescanned %s: %d agents, %d workflows\n",
				project.Name, len(project.Agents), len(project.Workflows))
			return nil
		},
	}
}

func newProjectRemoveCommand(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a project from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOrBackground(cmd)
			if !validate.IsValidAgentId(args[0]) {
				return ccrerr.New(ccrerr.Invalid, "project id must be a UUIDv4", nil, map[string]any{"id": args[0]})
			}
			if err := deps.Registry.RemoveProject(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed project %s\n", args[0])
			return nil
		},
	}
}

func newProjectConfigureCommand(deps *Dependencies) *cobra.Command {
	var agentID, workflowID, model string
	cmd := &cobra.Command{
		Use:   "configure <id>",
		Short: "Show or edit a project's agent/workflow model assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOrBackground(cmd)
			projectID := args[0]
			if !validate.IsValidAgentId(projectID) {
				return ccrerr.New(ccrerr.Invalid, "project id must be a UUIDv4", nil, map[string]any{"id": projectID})
			}

			switch {
			case agentID != "":
				if err := deps.Registry.SetAgentModel(ctx, projectID, agentID, model); err != nil {
					return err
				}
			case workflowID != "":
				if err := deps.Registry.SetWorkflowModel(ctx, projectID, workflowID, model); err != nil {
					return err
				}
			}

			project, err := deps.Registry.GetProject(ctx, projectID)
			if err != nil {
				return err
			}
			if project == nil {
				return ccrerr.New(ccrerr.NotFound, "project not found", nil, map[string]any{"projectId": projectID})
			}
			printProjectConfiguration(cmd, project.Agents, project.Workflows)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id to assign --model to")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "workflow id to assign --model to")
	cmd.Flags().StringVar(&model, "model", "", "provider,model string; empty clears the assignment")
	return cmd
}

func printProjectConfiguration(cmd *cobra.Command, agents []registry.Agent, workflows []registry.Workflow) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "agents:")
	for _, a := range agents {
		fmt.Fprintf(out, "  %s\t%s\t%s\n", a.ID, a.Name, modelOrUnset(a.Model))
	}
	fmt.Fprintln(out, "workflows:")
	for _, w := range workflows {
		fmt.Fprintf(out, "  %s\t%s\t%s\n", w.ID, w.Name, modelOrUnset(w.Model))
	}
}

func modelOrUnset(model string) string {
	if model == "" {
		return "(inherited)"
	}
	return model
}

func newProjectModelCommand(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "model <agentId> <provider,model>",
		Short: "Assign a model to an agent, resolving its project automatically",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOrBackground(cmd)
			agentID, model := args[0], args[1]
			if !validate.IsValidAgentId(agentID) {
				return ccrerr.New(ccrerr.Invalid, "agent id must be a UUIDv4", nil, map[string]any{"id": agentID})
			}
			if model != "" && !validate.IsValidModelString(model) {
				return ccrerr.New(ccrerr.Invalid, "model must be a provider,model string", nil, map[string]any{"model": model})
			}
			projectID, ok, err := deps.Registry.DetectProject(ctx, agentID)
			if err != nil {
				return err
			}
			if !ok {
				return ccrerr.New(ccrerr.NotFound, "no project contains this agent id", nil, map[string]any{"agentId": agentID})
			}
			if err := deps.Registry.SetAgentModel(ctx, projectID, agentID, model); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assigned %s to agent %s\n", model, agentID)
			return nil
		},
	}
}

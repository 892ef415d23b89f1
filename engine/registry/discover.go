package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ccrouter/ccr/engine/validate"
	"github.com/ccrouter/ccr/pkg/logger"
	goyaml "github.com/goccy/go-yaml"
)

// agentsDirs are the roots DiscoverAgents searches, in order; the project
// may use either the dotted legacy layout or the underscore layout.
var agentsDirs = []string{".bmad/bmm/agents", "_bmad/bmm/agents"}

// workflowsDirs mirrors agentsDirs for ScanWorkflows.
var workflowsDirs = []string{"_bmad/bmm/workflows", ".bmad/bmm/workflows"}

// DiscoverAgents globs every `*.md` file under projectPath's agents
// directory, injects or reads its id, and returns one Agent per file.
// A missing or unreadable agents directory yields an empty slice with a
// logged warning rather than an error; a single file failing injection is
// skipped rather than aborting the whole scan.
func DiscoverAgents(ctx context.Context, projectPath string) []Agent {
	log := logger.FromContext(ctx)
	var agents []Agent
	for _, rel := range agentsDirs {
		dir := filepath.Join(projectPath, rel)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn("could not read agents directory", "path", dir, "error", err)
			}
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			absPath := filepath.Join(dir, entry.Name())
			id, err := injectAgentID(absPath)
			if err != nil {
				log.Warn("skipping agent file", "path", absPath, "error", err)
				continue
			}
			agents = append(agents, Agent{
				ID:           id,
				Name:         entry.Name(),
				RelativePath: filepath.Join(rel, entry.Name()),
				AbsolutePath: absPath,
			})
		}
	}
	return agents
}

type workflowYAML struct {
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	ModelInheritance string `yaml:"modelInheritance"`
}

// ScanWorkflows walks every subdirectory of projectPath's workflows root
// that contains a workflow.yaml, parses it tolerant of missing fields,
// injects or reads its id, and returns one Workflow per directory.
func ScanWorkflows(ctx context.Context, projectPath string) []Workflow {
	log := logger.FromContext(ctx)
	var workflows []Workflow
	for _, rel := range workflowsDirs {
		root := filepath.Join(projectPath, rel)
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn("could not read workflows directory", "path", root, "error", err)
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			yamlPath := filepath.Join(root, entry.Name(), "workflow.yaml")
			if _, err := os.Stat(yamlPath); err != nil {
				continue
			}
			wf, err := loadWorkflow(log, yamlPath, entry.Name())
			if err != nil {
				log.Warn("skipping workflow directory", "path", yamlPath, "error", err)
				continue
			}
			wf.RelativePath = filepath.Join(rel, entry.Name())
			wf.AbsolutePath = filepath.Join(root, entry.Name())
			workflows = append(workflows, *wf)
		}
	}
	return workflows
}

func loadWorkflow(log logger.Logger, yamlPath, dirName string) (*Workflow, error) {
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, err
	}
	var parsed workflowYAML
	if err := goyaml.Unmarshal(raw, &parsed); err != nil {
		log.Warn("workflow.yaml failed to parse, using directory defaults", "path", yamlPath, "error", err)
	}
	name := parsed.Name
	if name == "" {
		name = dirName
	}
	inheritance := parsed.ModelInheritance
	if !validate.IsValidInheritanceMode(inheritance) {
		log.Warn("invalid modelInheritance, coercing to absent", "path", yamlPath, "value", inheritance)
		inheritance = ""
	}
	id, err := injectWorkflowID(yamlPath)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		ID:               id,
		Name:             name,
		Description:      parsed.Description,
		ModelInheritance: inheritance,
	}, nil
}

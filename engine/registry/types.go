// Package registry owns the on-disk projects-file: the single source of
// truth mapping projects to the agents and workflows discovered inside
// them, and the models assigned to each. Every read and write goes through
// this package; nothing else touches the file directly.
package registry

import "time"

const schemaVersion = "1.0.0"

// ProjectsFile is the root shape of projects.json.
type ProjectsFile struct {
	SchemaVersion string             `json:"schemaVersion"`
	Projects      map[string]Project `json:"projects"`
}

// Project is one registered project directory and everything discovered in it.
type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	CreatedAt string     `json:"createdAt"`
	UpdatedAt string     `json:"updatedAt"`
	Agents    []Agent    `json:"agents"`
	Workflows []Workflow `json:"workflows,omitempty"`
}

// Agent is one `.bmad/bmm/agents/*.md` file, tagged with a UUIDv4.
type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RelativePath string `json:"relativePath"`
	AbsolutePath string `json:"absolutePath"`
	Model        string `json:"model,omitempty"`
}

// Workflow is one workflow directory under `_bmad/bmm/workflows` (or the
// legacy `.bmad/bmm/workflows` root), tagged with a UUIDv4 in workflow.yaml.
type Workflow struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	RelativePath     string `json:"relativePath"`
	AbsolutePath     string `json:"absolutePath"`
	Model            string `json:"model,omitempty"`
	ModelInheritance string `json:"modelInheritance,omitempty"`
}

func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Package validate holds the stateless predicates the rest of the engine
// uses to decide whether an identity tag, model string, project path, or
// registry payload is well-formed before acting on it.
package validate

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// uuidV4Pattern is the authoritative shape for both agent and workflow ids.
var uuidV4Pattern = regexp.MustCompile(
	`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`,
)

// IsValidAgentId reports whether s is a well-formed UUIDv4.
func IsValidAgentId(s string) bool {
	return isValidUUIDv4(s)
}

// IsValidWorkflowId shares the agent id's shape.
func IsValidWorkflowId(s string) bool {
	return isValidUUIDv4(s)
}

func isValidUUIDv4(s string) bool {
	return uuidV4Pattern.MatchString(strings.ToLower(s))
}

// modelStringPattern is case-insensitive, matched against the lowercased input.
var modelStringPattern = regexp.MustCompile(`^[a-z0-9_-]+,[a-z0-9_./-]+$`)

// apiKeyShapes are patterns that, if matched by either side of a
// `provider,model` string, disqualify it: these are API key shapes, not
// model identifiers, and accepting one here would leak a credential into
// logs, cache keys, and the outgoing request body.
var apiKeyShapes = []*regexp.Regexp{
	regexp.MustCompile(`^sk-ant-[a-zA-Z0-9_-]+$`),
	regexp.MustCompile(`^sk-[a-zA-Z0-9_-]+$`),
	regexp.MustCompile(`^pk-[a-zA-Z0-9_-]+$`),
	regexp.MustCompile(`^xox[baprs]-[a-zA-Z0-9-]+$`),
	regexp.MustCompile(`^gh[porus]_[a-zA-Z0-9]{36}$`),
	regexp.MustCompile(`(?i)^AKIA[a-z0-9]{16}$`),
}

func looksLikeAPIKey(s string) bool {
	for _, re := range apiKeyShapes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// IsValidModelString reports whether s is a well-formed `provider,model`
// value: exactly one comma, neither side an API-key shape, neither side
// containing "key" or "secret", and each side within its length bounds.
func IsValidModelString(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if !modelStringPattern.MatchString(lower) {
		return false
	}
	parts := strings.SplitN(lower, ",", 2)
	if len(parts) != 2 {
		return false
	}
	provider, model := parts[0], parts[1]
	if len(provider) < 2 || len(provider) > 50 {
		return false
	}
	if len(model) < 2 || len(model) > 100 {
		return false
	}
	for _, side := range []string{provider, model} {
		if looksLikeAPIKey(side) {
			return false
		}
		if strings.Contains(side, "key") || strings.Contains(side, "secret") {
			return false
		}
	}
	return true
}

// IsValidProjectPath resolves p and reports whether it is an absolute path
// to an existing directory. This is the path-traversal defense: a project
// can only be registered against a place that actually exists on disk.
func IsValidProjectPath(ctx context.Context, p string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	resolved, err := filepath.Abs(p)
	if err != nil {
		return false, err
	}
	if !filepath.IsAbs(resolved) {
		return false, nil
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// ProjectsData is the minimal shape IsValidProjectsData type-guards.
type ProjectsData struct {
	Projects map[string]any
}

// IsValidProjectsData reports whether x's Projects field is a non-nil
// mapping (as opposed to, say, a JSON array smuggled in by a hand-edited
// file).
func IsValidProjectsData(x *ProjectsData) bool {
	return x != nil && x.Projects != nil
}

// InheritanceMode is the workflow model-inheritance setting.
type InheritanceMode string

const (
	InheritanceInherit InheritanceMode = "inherit"
	InheritanceDefault InheritanceMode = "default"
)

// IsValidInheritanceMode reports whether m is "inherit", "default", or
// empty (absent, which callers should treat as InheritanceDefault).
func IsValidInheritanceMode(m string) bool {
	switch InheritanceMode(m) {
	case "", InheritanceInherit, InheritanceDefault:
		return true
	default:
		return false
	}
}

// WorkflowConfig is the subset of engine/registry.Workflow that
// IsValidWorkflowConfig needs, kept here to avoid an import cycle between
// validate and registry.
type WorkflowConfig struct {
	ID               string
	Name             string
	RelativePath     string
	AbsolutePath     string
	Model            string
	ModelInheritance string
}

// IsValidWorkflowConfig reports whether w has all required fields and all
// optional fields, when present, pass their own validation.
func IsValidWorkflowConfig(w *WorkflowConfig) bool {
	if w == nil {
		return false
	}
	if w.ID == "" || w.Name == "" || w.RelativePath == "" || w.AbsolutePath == "" {
		return false
	}
	if !IsValidWorkflowId(w.ID) {
		return false
	}
	if w.Model != "" && !IsValidModelString(w.Model) {
		return false
	}
	if !IsValidInheritanceMode(w.ModelInheritance) {
		return false
	}
	return true
}

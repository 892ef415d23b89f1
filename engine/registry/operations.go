package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ccrouter/ccr/engine/ccrerr"
	"github.com/ccrouter/ccr/engine/validate"
	"github.com/ccrouter/ccr/pkg/logger"
	"github.com/google/uuid"
)

// AddProject validates path, rejects a duplicate path with eExists,
// discovers agents and workflows under it, and persists a new Project.
func (s *Store) AddProject(ctx context.Context, path string) (*Project, error) {
	ok, err := validate.IsValidProjectPath(ctx, path)
	if err != nil {
		return nil, ccrerr.Wrap(ccrerr.IO, err)
	}
	if !ok {
		return nil, ccrerr.New(ccrerr.Invalid, "project path does not resolve to an existing directory", nil,
			map[string]any{"path": path})
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, ccrerr.Wrap(ccrerr.Invalid, err)
	}

	release, lockErr := s.lock.acquireWrite()
	if lockErr != nil {
		return nil, ccrerr.Wrap(ccrerr.IO, lockErr)
	}
	defer release()

	pf, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pf.Projects {
		if p.Path == absPath {
			return nil, ccrerr.New(ccrerr.Exists, "a project already exists for this path", nil,
				map[string]any{"path": absPath, "projectId": p.ID})
		}
	}

	now := isoNow()
	project := Project{
		ID:        uuid.New().String(),
		Name:      filepath.Base(absPath),
		Path:      absPath,
		CreatedAt: now,
		UpdatedAt: now,
		Agents:    DiscoverAgents(ctx, absPath),
		Workflows: ScanWorkflows(ctx, absPath),
	}
	pf.Projects[project.ID] = project
	if err := s.saveLocked(ctx, pf); err != nil {
		return nil, err
	}
	return &project, nil
}

// ScanProject re-runs discovery against the project's path, detects UUID
// collisions across the freshly discovered agents (eInvariant, fatal), and
// persists the refreshed Project.
func (s *Store) ScanProject(ctx context.Context, id string) (*Project, error) {
	release, lockErr := s.lock.acquireWrite()
	if lockErr != nil {
		return nil, ccrerr.Wrap(ccrerr.IO, lockErr)
	}
	defer release()

	pf, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	project, ok := pf.Projects[id]
	if !ok {
		return nil, ccrerr.New(ccrerr.NotFound, "project not found", nil, map[string]any{"projectId": id})
	}

	agents := DiscoverAgents(ctx, project.Path)
	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if seen[a.ID] {
			return nil, ccrerr.New(ccrerr.Invariant, "duplicate agent id discovered during scan", nil,
				map[string]any{"projectId": id, "agentId": a.ID})
		}
		seen[a.ID] = true
	}
	applyExistingModels(agents, project.Agents)

	workflows := ScanWorkflows(ctx, project.Path)
	applyExistingWorkflowModels(workflows, project.Workflows)

	project.Agents = agents
	project.Workflows = workflows
	project.UpdatedAt = isoNow()
	pf.Projects[id] = project
	if err := s.saveLocked(ctx, pf); err != nil {
		return nil, err
	}
	return &project, nil
}

func applyExistingModels(fresh []Agent, prior []Agent) {
	priorByID := make(map[string]string, len(prior))
	for _, a := range prior {
		priorByID[a.ID] = a.Model
	}
	for i := range fresh {
		if m, ok := priorByID[fresh[i].ID]; ok {
			fresh[i].Model = m
		}
	}
}

func applyExistingWorkflowModels(fresh []Workflow, prior []Workflow) {
	priorByID := make(map[string]string, len(prior))
	for _, w := range prior {
		priorByID[w.ID] = w.Model
	}
	for i := range fresh {
		if m, ok := priorByID[fresh[i].ID]; ok {
			fresh[i].Model = m
		}
	}
}

// RemoveProject deletes a project from the registry.
func (s *Store) RemoveProject(ctx context.Context, id string) error {
	release, lockErr := s.lock.acquireWrite()
	if lockErr != nil {
		return ccrerr.Wrap(ccrerr.IO, lockErr)
	}
	defer release()

	pf, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if _, ok := pf.Projects[id]; !ok {
		return ccrerr.New(ccrerr.NotFound, "project not found", nil, map[string]any{"projectId": id})
	}
	delete(pf.Projects, id)
	return s.saveLocked(ctx, pf)
}

// ListProjects returns every project sorted ascending by name.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	pf, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(pf.Projects))
	for _, p := range pf.Projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetProject returns the project with the given id, or nil if absent.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	pf, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if p, ok := pf.Projects[id]; ok {
		return &p, nil
	}
	return nil, nil
}

// SetAgentModel assigns (or, when model is empty, clears) the model string
// for agentId within projectId.
func (s *Store) SetAgentModel(ctx context.Context, projectID, agentID, model string) error {
	if model != "" && !validate.IsValidModelString(model) {
		return ccrerr.New(ccrerr.Invalid, "invalid model string", nil, map[string]any{"model": model})
	}
	release, lockErr := s.lock.acquireWrite()
	if lockErr != nil {
		return ccrerr.Wrap(ccrerr.IO, lockErr)
	}
	defer release()

	pf, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	project, ok := pf.Projects[projectID]
	if !ok {
		return ccrerr.New(ccrerr.NotFound, "project not found", nil, map[string]any{"projectId": projectID})
	}
	found := false
	for i := range project.Agents {
		if project.Agents[i].ID == agentID {
			project.Agents[i].Model = model
			found = true
			break
		}
	}
	if !found {
		return ccrerr.New(ccrerr.NotFound, "agent not found in project", nil,
			map[string]any{"projectId": projectID, "agentId": agentID})
	}
	project.UpdatedAt = isoNow()
	pf.Projects[projectID] = project
	return s.saveLocked(ctx, pf)
}

// SetWorkflowModel is SetAgentModel's workflow analogue.
func (s *Store) SetWorkflowModel(ctx context.Context, projectID, workflowID, model string) error {
	if model != "" && !validate.IsValidModelString(model) {
		return ccrerr.New(ccrerr.Invalid, "invalid model string", nil, map[string]any{"model": model})
	}
	release, lockErr := s.lock.acquireWrite()
	if lockErr != nil {
		return ccrerr.Wrap(ccrerr.IO, lockErr)
	}
	defer release()

	pf, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	project, ok := pf.Projects[projectID]
	if !ok {
		return ccrerr.New(ccrerr.NotFound, "project not found", nil, map[string]any{"projectId": projectID})
	}
	found := false
	for i := range project.Workflows {
		if project.Workflows[i].ID == workflowID {
			project.Workflows[i].Model = model
			found = true
			break
		}
	}
	if !found {
		return ccrerr.New(ccrerr.NotFound, "workflow not found in project", nil,
			map[string]any{"projectId": projectID, "workflowId": workflowID})
	}
	project.UpdatedAt = isoNow()
	pf.Projects[projectID] = project
	return s.saveLocked(ctx, pf)
}

// GetModelByAgentId looks up the model assigned to agentID. When projectID
// is non-empty the search is scoped to that project; otherwise every
// project is scanned and the first match wins.
func (s *Store) GetModelByAgentId(ctx context.Context, agentID, projectID string) (string, bool, error) {
	pf, err := s.Load(ctx)
	if err != nil {
		return "", false, err
	}
	if projectID != "" {
		project, ok := pf.Projects[projectID]
		if !ok {
			return "", false, nil
		}
		return findAgentModel(project, agentID)
	}
	for _, project := range pf.Projects {
		if model, ok, err := findAgentModel(project, agentID); err == nil && ok {
			return model, true, nil
		}
	}
	return "", false, nil
}

func findAgentModel(project Project, agentID string) (string, bool, error) {
	for _, a := range project.Agents {
		if a.ID == agentID {
			return a.Model, a.Model != "", nil
		}
	}
	return "", false, nil
}

// GetModelByWorkflowId is GetModelByAgentId's workflow analogue.
func (s *Store) GetModelByWorkflowId(ctx context.Context, workflowID, projectID string) (string, bool, error) {
	pf, err := s.Load(ctx)
	if err != nil {
		return "", false, err
	}
	if projectID != "" {
		project, ok := pf.Projects[projectID]
		if !ok {
			return "", false, nil
		}
		return findWorkflowModel(project, workflowID)
	}
	for _, project := range pf.Projects {
		if model, ok, err := findWorkflowModel(project, workflowID); err == nil && ok {
			return model, true, nil
		}
	}
	return "", false, nil
}

func findWorkflowModel(project Project, workflowID string) (string, bool, error) {
	for _, w := range project.Workflows {
		if w.ID == workflowID {
			return w.Model, w.Model != "", nil
		}
	}
	return "", false, nil
}

// DetectProject returns the id of the first project containing agentID.
func (s *Store) DetectProject(ctx context.Context, agentID string) (string, bool, error) {
	pf, err := s.Load(ctx)
	if err != nil {
		return "", false, err
	}
	for _, project := range pf.Projects {
		for _, a := range project.Agents {
			if a.ID == agentID {
				return project.ID, true, nil
			}
		}
	}
	return "", false, nil
}

// DetectProjectByWorkflowId is DetectProject's workflow analogue.
func (s *Store) DetectProjectByWorkflowId(ctx context.Context, workflowID string) (string, bool, error) {
	pf, err := s.Load(ctx)
	if err != nil {
		return "", false, err
	}
	for _, project := range pf.Projects {
		for _, w := range project.Workflows {
			if w.ID == workflowID {
				return project.ID, true, nil
			}
		}
	}
	return "", false, nil
}

// FindAgentFileById searches claudeProjectsRoot for a `.md` file tagged
// with agentID, used to drive auto-registration when an identity resolves
// to no known project.
func FindAgentFileById(ctx context.Context, agentID, claudeProjectsRoot string) (string, bool) {
	log := logger.FromContext(ctx)
	var found string
	err := filepath.WalkDir(claudeProjectsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if found != "" {
			return filepath.SkipDir
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		if m := agentTagPattern.FindSubmatch(raw); m != nil && strings.EqualFold(string(m[1]), agentID) {
			found = path
		}
		return nil
	})
	if err != nil {
		log.Warn("auto-registration search failed", "root", claudeProjectsRoot, "error", err)
	}
	return found, found != ""
}

// AutoRegisterFromAgentFile walks up from an agent file to find its
// project root (first ancestor containing a .bmad/bmm/agents or
// _bmad/bmm/agents directory) and registers it via AddProject.
func (s *Store) AutoRegisterFromAgentFile(ctx context.Context, agentFilePath string) (*Project, error) {
	dir := filepath.Dir(agentFilePath)
	for {
		for _, rel := range agentsDirs {
			if info, err := os.Stat(filepath.Join(dir, rel)); err == nil && info.IsDir() {
				return s.AddProject(ctx, dir)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, ccrerr.New(ccrerr.NotFound, "could not locate a project root above agent file", nil,
		map[string]any{"agentFilePath": agentFilePath})
}

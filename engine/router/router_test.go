package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ccrouter/ccr/engine/ccrreq"
	"github.com/ccrouter/ccr/engine/registry"
	"github.com/ccrouter/ccr/engine/sessioncache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfig struct {
	cfg RouterConfig
}

func (f *fakeConfig) Get(_ context.Context, _ string) (string, bool) { return "", false }
func (f *fakeConfig) GetAll(_ context.Context) RouterConfig          { return f.cfg }

func newTestContext(t *testing.T, cfg RouterConfig) (*RouterContext, *registry.Store) {
	t.Helper()
	dir := t.TempDir()
	store := registry.NewStore(filepath.Join(dir, "projects.json"))
	return &RouterContext{
		Config:   &fakeConfig{cfg: cfg},
		Registry: store,
		Caches:   sessioncache.NewCaches(),
	}, store
}

func systemBody(texts ...string) *ccrreq.Body {
	blocks := make([]ccrreq.SystemBlock, len(texts))
	for i, t := range texts {
		blocks[i] = ccrreq.SystemBlock{Type: "text", Text: t}
	}
	return &ccrreq.Body{System: blocks, Metadata: ccrreq.Metadata{UserID: "u_session_s1"}}
}

func TestDecide_VanillaMissFallsToDefault(t *testing.T) {
	rc, _ := newTestContext(t, RouterConfig{Default: "openai,gpt-4o"})
	body := systemBody("hello")

	decision := Decide(context.Background(), rc, body)

	assert.Equal(t, "openai,gpt-4o", decision.Model)
	assert.Equal(t, ScenarioDefault, decision.ScenarioType)
	assert.Equal(t, "openai,gpt-4o", body.Model)
	assert.Equal(t, 0, rc.Caches.ModelCache.Size())
}

func TestDecide_AgentHitThenCacheHit(t *testing.T) {
	rc, store := newTestContext(t, RouterConfig{Default: "openai,gpt-4o"})
	ctx := context.Background()
	projectDir := t.TempDir()
	agentsDir := filepath.Join(projectDir, ".bmad", "bmm", "agents")
	require.NoError(t, os.MkdirAll(agentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(agentsDir, "dev.md"), []byte("# dev\n"), 0o644))

	project, err := store.AddProject(ctx, projectDir)
	require.NoError(t, err)
	agentID := project.Agents[0].ID
	require.NoError(t, store.SetAgentModel(ctx, project.ID, agentID, "anthropic,claude-sonnet-4"))

	body := systemBody("<!-- CCR-AGENT-ID: " + agentID + " -->")
	decision := Decide(ctx, rc, body)
	assert.Equal(t, "anthropic,claude-sonnet-4", decision.Model)
	assert.Equal(t, 1, rc.Caches.ModelCache.Size())

	// Second call should be served from cache.
	body2 := systemBody("<!-- CCR-AGENT-ID: " + agentID + " -->")
	decision2 := Decide(ctx, rc, body2)
	assert.Equal(t, "anthropic,claude-sonnet-4", decision2.Model)
	assert.Equal(t, int64(1), rc.Caches.ModelCache.Metrics().Hits)
}

func TestDecide_WorkflowWinsOverAgent(t *testing.T) {
	rc, store := newTestContext(t, RouterConfig{Default: "openai,gpt-4o"})
	ctx := context.Background()
	projectDir := t.TempDir()
	agentsDir := filepath.Join(projectDir, ".bmad", "bmm", "agents")
	require.NoError(t, os.MkdirAll(agentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(agentsDir, "dev.md"), []byte("# dev\n"), 0o644))
	wfDir := filepath.Join(projectDir, "_bmad", "bmm", "workflows", "party-mode")
	require.NoError(t, os.MkdirAll(wfDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(wfDir, "workflow.yaml"), []byte("name: party-mode\n"), 0o644))

	project, err := store.AddProject(ctx, projectDir)
	require.NoError(t, err)
	agentID := project.Agents[0].ID
	workflowID := project.Workflows[0].ID
	require.NoError(t, store.SetWorkflowModel(ctx, project.ID, workflowID, "google,gemini-2.5-pro"))

	body := systemBody(
		"<!-- CCR-AGENT-ID: " + agentID + " -->",
		"<!-- CCR-WORKFLOW-ID: " + workflowID + " -->",
	)
	decision := Decide(ctx, rc, body)
	assert.Equal(t, "google,gemini-2.5-pro", decision.Model)
}

func TestDecide_InlineOverrideBeatsSubagentTag(t *testing.T) {
	rc, _ := newTestContext(t, RouterConfig{Default: "openai,gpt-4o"})
	body := systemBody(
		"preamble",
		"before <CCR-SUBAGENT-MODEL>openai,gpt-4o</CCR-SUBAGENT-MODEL> <!-- CCR-MODEL-OVERRIDE: kiro,claude-sonnet-4 --> after",
	)
	decision := Decide(context.Background(), rc, body)
	assert.Equal(t, "kiro,claude-sonnet-4", decision.Model)
	assert.NotContains(t, body.System[1].Text, "CCR-SUBAGENT-MODEL", "tag is always stripped even when it doesn't win")
}

func TestDecide_WorkflowInheritanceSkipsToDefault(t *testing.T) {
	rc, store := newTestContext(t, RouterConfig{Default: "openai,gpt-4o"})
	ctx := context.Background()
	projectDir := t.TempDir()
	wfDir := filepath.Join(projectDir, "_bmad", "bmm", "workflows", "party-mode")
	require.NoError(t, os.MkdirAll(wfDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(wfDir, "workflow.yaml"), []byte("modelInheritance: inherit\n"), 0o644))

	project, err := store.AddProject(ctx, projectDir)
	require.NoError(t, err)
	workflowID := project.Workflows[0].ID

	body := systemBody("<!-- CCR-WORKFLOW-ID: " + workflowID + " -->")
	decision := Decide(ctx, rc, body)
	assert.Equal(t, "openai,gpt-4o", decision.Model)
	assert.Equal(t, 0, rc.Caches.ModelCache.Size())
}

func TestDecide_CorruptRegistryFallsBackToDefault(t *testing.T) {
	rc, store := newTestContext(t, RouterConfig{Default: "openai,gpt-4o"})
	require.NoError(t, os.WriteFile(store.Path(), []byte("{ invalid json"), 0o644))

	body := systemBody("<!-- CCR-WORKFLOW-ID: 660e8400-e29b-41d4-a716-446655440000 -->")
	decision := Decide(context.Background(), rc, body)
	assert.Equal(t, "openai,gpt-4o", decision.Model)

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "{ invalid json", string(raw))
}

func TestDecide_DirectModelField(t *testing.T) {
	rc, _ := newTestContext(t, RouterConfig{})
	body := &ccrreq.Body{Model: "anthropic,claude-opus-4"}
	decision := Decide(context.Background(), rc, body)
	assert.Equal(t, "anthropic,claude-opus-4", decision.Model)
}

func TestDecide_BackgroundModel(t *testing.T) {
	rc, _ := newTestContext(t, RouterConfig{Background: "anthropic,claude-haiku"})
	body := &ccrreq.Body{Model: "claude-3-5-haiku"}
	decision := Decide(context.Background(), rc, body)
	assert.Equal(t, "anthropic,claude-haiku", decision.Model)
	assert.Equal(t, ScenarioBackground, decision.ScenarioType)
}

func TestDecide_WebSearchTool(t *testing.T) {
	rc, _ := newTestContext(t, RouterConfig{WebSearch: "anthropic,claude-sonnet-4"})
	body := &ccrreq.Body{Tools: []ccrreq.Tool{{Type: "web_search_preview"}}}
	decision := Decide(context.Background(), rc, body)
	assert.Equal(t, "anthropic,claude-sonnet-4", decision.Model)
	assert.Equal(t, ScenarioWebSearch, decision.ScenarioType)
}

func TestDecide_ThinkMode(t *testing.T) {
	rc, _ := newTestContext(t, RouterConfig{Think: "anthropic,claude-opus-4"})
	body := &ccrreq.Body{Thinking: true}
	decision := Decide(context.Background(), rc, body)
	assert.Equal(t, "anthropic,claude-opus-4", decision.Model)
	assert.Equal(t, ScenarioThink, decision.ScenarioType)
}

func TestDecide_NoHardcodedCrashWhenConfigNil(t *testing.T) {
	body := &ccrreq.Body{}
	decision := Decide(context.Background(), &RouterContext{}, body)
	assert.Equal(t, hardFallbackModel, decision.Model)
}

func TestDecide_CustomRouterWins(t *testing.T) {
	rc, _ := newTestContext(t, RouterConfig{Default: "openai,gpt-4o"})
	rc.Custom = func(_ context.Context, _ *ccrreq.Body) (string, error) {
		return "custom,special-model", nil
	}
	body := &ccrreq.Body{}
	decision := Decide(context.Background(), rc, body)
	assert.Equal(t, "custom,special-model", decision.Model)
}

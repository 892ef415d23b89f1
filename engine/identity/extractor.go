// Package identity parses an incoming chat-completion request for the
// routing directives embedded in its system/message text: agent and
// workflow id tags, an inline model override, and session/parent-context
// metadata. Every operation here is a pure function over the request; none
// of them touch the filesystem or the registry.
package identity

import (
	"regexp"
	"strings"

	"github.com/ccrouter/ccr/engine/ccrreq"
	"github.com/ccrouter/ccr/engine/validate"
	"github.com/ccrouter/ccr/pkg/logger"
)

// Kind distinguishes an agent identity from a workflow identity.
type Kind string

const (
	KindAgent    Kind = "agent"
	KindWorkflow Kind = "workflow"
)

// RoutingID is the result of ExtractRoutingId: an identity tag plus its kind.
type RoutingID struct {
	Kind Kind
	ID   string
}

var (
	agentIDPattern    = regexp.MustCompile(`(?i)<!--\s*CCR-AGENT-ID\s*:\s*([0-9a-fA-F-]{36})\s*-->`)
	workflowIDPattern = regexp.MustCompile(`(?i)<!--\s*CCR-WORKFLOW-ID\s*:\s*([0-9a-fA-F-]{36})\s*-->`)
	overridePattern   = regexp.MustCompile(`(?i)<!--\s*CCR-MODEL-OVERRIDE\s*:\s*([^\s>][^>]*?)\s*-->`)
	subagentPattern   = regexp.MustCompile(`(?i)<CCR-SUBAGENT-MODEL>(.*?)</CCR-SUBAGENT-MODEL>`)
)

// hasFastPathMarker is the sub-microsecond gate from spec §4.1: unless the
// literal substring "CCR-" appears somewhere in the candidate text, no
// directive regex runs at all.
func hasFastPathMarker(s string) bool {
	return strings.Contains(s, "CCR-")
}

// systemTexts returns the text of every system block, in order.
func systemTexts(body *ccrreq.Body) []string {
	out := make([]string, 0, len(body.System))
	for _, b := range body.System {
		if b.Type == "text" || b.Type == "" {
			out = append(out, b.Text)
		}
	}
	return out
}

// messageTexts returns the text of every message's content, flattened, in
// message order.
func messageTexts(body *ccrreq.Body) []string {
	out := make([]string, 0, len(body.Messages))
	for _, m := range body.Messages {
		out = append(out, m.Content.Texts()...)
	}
	return out
}

func allTexts(body *ccrreq.Body) []string {
	return append(systemTexts(body), messageTexts(body)...)
}

// ExtractRoutingId scans system blocks first, then falls back to message
// content, for an agent or workflow id tag. When both an agent id and a
// workflow id are present anywhere in the request, the workflow wins. A tag
// that fails UUIDv4 validation is treated as absent (with a logged warning)
// rather than rejecting the whole request.
func ExtractRoutingId(body *ccrreq.Body) *RoutingID {
	combined := strings.Join(allTexts(body), "\n")
	if !hasFastPathMarker(combined) {
		return nil
	}

	var agentID, workflowID string
	for _, text := range systemTexts(body) {
		if workflowID == "" {
			if m := workflowIDPattern.FindStringSubmatch(text); m != nil {
				workflowID = m[1]
			}
		}
		if agentID == "" {
			if m := agentIDPattern.FindStringSubmatch(text); m != nil {
				agentID = m[1]
			}
		}
	}
	if workflowID == "" || agentID == "" {
		for _, text := range messageTexts(body) {
			if workflowID == "" {
				if m := workflowIDPattern.FindStringSubmatch(text); m != nil {
					workflowID = m[1]
				}
			}
			if agentID == "" {
				if m := agentIDPattern.FindStringSubmatch(text); m != nil {
					agentID = m[1]
				}
			}
		}
	}

	if workflowID != "" {
		if !validate.IsValidWorkflowId(workflowID) {
			logger.FromContext(nil).Warn("rejecting malformed workflow id tag", "id", workflowID)
			workflowID = ""
		} else {
			return &RoutingID{Kind: KindWorkflow, ID: strings.ToLower(workflowID)}
		}
	}
	if agentID != "" {
		if !validate.IsValidAgentId(agentID) {
			logger.FromContext(nil).Warn("rejecting malformed agent id tag", "id", agentID)
			return nil
		}
		return &RoutingID{Kind: KindAgent, ID: strings.ToLower(agentID)}
	}
	return nil
}

// ExtractAgentId is the backward-compatible projection of ExtractRoutingId:
// it returns an id only when the resolved kind is agent.
func ExtractAgentId(body *ccrreq.Body) string {
	rid := ExtractRoutingId(body)
	if rid == nil || rid.Kind != KindAgent {
		return ""
	}
	return rid.ID
}

// ExtractSessionId takes metadata.user_id, splits on the literal
// "_session_", and returns the trimmed portion after the first split, or
// "default" when absent or empty.
func ExtractSessionId(body *ccrreq.Body) string {
	userID := body.Metadata.UserID
	if userID == "" {
		return "default"
	}
	parts := strings.SplitN(userID, "_session_", 2)
	if len(parts) != 2 {
		return "default"
	}
	session := strings.TrimSpace(parts[1])
	if session == "" {
		return "default"
	}
	return session
}

// ExtractInlineOverride searches the concatenated system and message text
// for a CCR-MODEL-OVERRIDE directive and validates its payload as a
// `provider,model` string. An invalid payload is treated as absent.
func ExtractInlineOverride(body *ccrreq.Body) string {
	combined := strings.Join(allTexts(body), "\n")
	if !hasFastPathMarker(combined) {
		return ""
	}
	m := overridePattern.FindStringSubmatch(combined)
	if m == nil {
		return ""
	}
	candidate := strings.TrimSpace(m[1])
	if !validate.IsValidModelString(candidate) {
		logger.FromContext(nil).Warn("rejecting malformed model override directive", "value", candidate)
		return ""
	}
	return normalizeModelString(candidate)
}

// SubagentMatch locates the first <CCR-SUBAGENT-MODEL> tag within a system
// block's text and reports both the extracted model and the text with the
// tag removed, so callers can strip it from the outgoing request in place.
type SubagentMatch struct {
	Model       string
	StrippedText string
}

// ExtractSubagentModel looks for a <CCR-SUBAGENT-MODEL> tag in system[1]'s
// text specifically, per spec §4.5 step 3, and returns the match plus the
// text with the tag removed. Returns nil when system has fewer than two
// blocks, the tag is absent, or its payload fails model-string validation.
func ExtractSubagentModel(body *ccrreq.Body) *SubagentMatch {
	if len(body.System) < 2 {
		return nil
	}
	text := body.System[1].Text
	if !hasFastPathMarker(text) && !strings.Contains(text, "<CCR-SUBAGENT-MODEL>") {
		return nil
	}
	loc := subagentPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}
	candidate := strings.TrimSpace(text[loc[2]:loc[3]])
	if !validate.IsValidModelString(candidate) {
		return nil
	}
	stripped := text[:loc[0]] + text[loc[1]:]
	return &SubagentMatch{Model: normalizeModelString(candidate), StrippedText: stripped}
}

// ParentContext is the result of ExtractParentContext.
type ParentContext struct {
	ParentID    string
	ParentModel string
	ParentType  string
}

// ExtractParentContext reads metadata.parent_id/parent_model/parent_type.
// All three must be present and parentModel must pass model-string
// validation and parentType must be "agent" or "workflow"; otherwise nil.
func ExtractParentContext(body *ccrreq.Body) *ParentContext {
	md := body.Metadata
	if md.ParentID == "" || md.ParentModel == "" || md.ParentType == "" {
		return nil
	}
	if !validate.IsValidModelString(md.ParentModel) {
		return nil
	}
	if md.ParentType != "agent" && md.ParentType != "workflow" {
		return nil
	}
	return &ParentContext{
		ParentID:    md.ParentID,
		ParentModel: normalizeModelString(md.ParentModel),
		ParentType:  md.ParentType,
	}
}

func normalizeModelString(s string) string {
	parts := strings.SplitN(strings.TrimSpace(s), ",", 2)
	if len(parts) != 2 {
		return s
	}
	return strings.TrimSpace(parts[0]) + "," + strings.TrimSpace(parts[1])
}

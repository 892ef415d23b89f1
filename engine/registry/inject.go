package registry

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ccrouter/ccr/engine/ccrerr"
	"github.com/ccrouter/ccr/engine/validate"
	"github.com/google/uuid"
)

var (
	agentTagPattern    = regexp.MustCompile(`(?i)<!--\s*CCR-AGENT-ID\s*:\s*([0-9a-fA-F-]{36})\s*-->`)
	workflowTagPattern = regexp.MustCompile(`(?i)<!--\s*CCR-WORKFLOW-ID\s*:\s*([0-9a-fA-F-]{36})\s*-->`)
)

// injectAgentID reads the agent markdown file at path, returns its existing
// tag if one validates, or generates and appends a fresh one. The file's
// pre-existing bytes are preserved byte-for-byte; the append goes through
// the same backup-and-restore discipline as Store.Save.
func injectAgentID(path string) (string, error) {
	return injectTag(path, agentTagPattern, "CCR-AGENT-ID", validate.IsValidAgentId)
}

// injectWorkflowID is the workflow.yaml analogue of injectAgentID.
func injectWorkflowID(path string) (string, error) {
	return injectTag(path, workflowTagPattern, "CCR-WORKFLOW-ID", validate.IsValidWorkflowId)
}

func injectTag(path string, pattern *regexp.Regexp, marker string, valid func(string) bool) (string, error) {
	if err := ensureWritableFile(path); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", ccrerr.New(ccrerr.IO, "read file for id injection", err, map[string]any{"path": path})
	}
	if m := pattern.FindSubmatch(raw); m != nil {
		existing := string(m[1])
		if valid(existing) {
			return strings.ToLower(existing), nil
		}
	}

	id := uuid.New().String()
	if !valid(id) {
		return "", ccrerr.New(ccrerr.Invariant, "generated id failed self-validation", nil, map[string]any{"id": id})
	}

	backupPath := path + ".backup"
	if err := copyFile(path, backupPath); err != nil {
		return "", ccrerr.New(ccrerr.IO, "backup file before id injection", err, map[string]any{"path": path})
	}

	tag := fmt.Sprintf("<!-- %s: %s -->", marker, id)
	content := append(append([]byte{}, raw...), []byte(separatorFor(raw)+tag)...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		if restoreErr := os.Rename(backupPath, path); restoreErr != nil {
			return "", ccrerr.New(ccrerr.IO, "write and restore both failed", restoreErr, map[string]any{"path": path})
		}
		return "", ccrerr.New(ccrerr.IO, "write file during id injection", err, map[string]any{"path": path})
	}
	_ = os.Remove(backupPath)
	return id, nil
}

// separatorFor determines the bytes to insert between the file's existing
// content and the new tag, preserving the file's trailing-newline shape.
func separatorFor(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if strings.HasSuffix(string(raw), "\n\n") {
		return ""
	}
	if strings.HasSuffix(string(raw), "\n") {
		return "\n"
	}
	return "\n\n"
}

func ensureWritableFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return ccrerr.New(ccrerr.IO, "stat file for id injection", err, map[string]any{"path": path})
	}
	if info.Mode().Perm()&0o200 == 0 {
		return ccrerr.New(ccrerr.Perm, "file is not writable", nil, map[string]any{"path": path})
	}
	return nil
}

package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ccrouter/ccr/engine/ccrerr"
	"github.com/ccrouter/ccr/pkg/logger"
	"github.com/tidwall/gjson"
)

const projectsHeader = "// Project configurations for CCR agent system\n"

// Store owns a single projects.json file: every read and write the rest of
// the engine performs goes through it.
type Store struct {
	path string
	lock *pathLock
}

// NewStore returns a Store bound to path (typically
// "~/.claude-code-router/projects.json", expanded by the caller).
func NewStore(path string) *Store {
	return &Store{path: path, lock: newPathLock(path)}
}

// Path returns the bound projects-file path.
func (s *Store) Path() string { return s.path }

// Load reads and parses the projects-file. A missing file is not an error:
// it yields an empty ProjectsFile. A parse failure is surfaced as eInvalid
// and the file is left untouched.
func (s *Store) Load(ctx context.Context) (*ProjectsFile, error) {
	release := s.lock.acquireRead()
	defer release()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) (*ProjectsFile, error) {
	log := logger.FromContext(ctx)
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ProjectsFile{SchemaVersion: schemaVersion, Projects: map[string]Project{}}, nil
		}
		return nil, ccrerr.New(ccrerr.IO, "read projects file", err, map[string]any{"path": s.path})
	}
	stripped := stripComments(raw)
	if !gjson.ValidBytes(stripped) {
		log.Warn("projects file is not valid JSON, leaving it untouched", "path", s.path)
		return nil, ccrerr.New(ccrerr.Invalid, "parse projects file", nil, map[string]any{"path": s.path})
	}
	var pf ProjectsFile
	if err := json.Unmarshal(stripped, &pf); err != nil {
		log.Warn("projects file failed to parse, leaving it untouched", "path", s.path, "error", err)
		return nil, ccrerr.New(ccrerr.Invalid, "parse projects file", err, map[string]any{"path": s.path})
	}
	if pf.Projects == nil {
		pf.Projects = map[string]Project{}
	}
	if pf.SchemaVersion == "" {
		pf.SchemaVersion = schemaVersion
	}
	return &pf, nil
}

// Save writes pf atomically: directory-writability check, backup of any
// existing file, serialize-with-header, write, delete backup on success,
// restore backup on any failure between steps.
func (s *Store) Save(ctx context.Context, pf *ProjectsFile) error {
	release, err := s.lock.acquireWrite()
	if err != nil {
		return ccrerr.Wrap(ccrerr.IO, err)
	}
	defer release()
	return s.saveLocked(ctx, pf)
}

func (s *Store) saveLocked(ctx context.Context, pf *ProjectsFile) error {
	log := logger.FromContext(ctx)
	dir := filepath.Dir(s.path)
	if err := ensureWritableDir(dir); err != nil {
		return err
	}
	backupPath := s.path + ".backup"
	hadExisting := false
	if _, err := os.Stat(s.path); err == nil {
		hadExisting = true
		if err := copyFile(s.path, backupPath); err != nil {
			return ccrerr.New(ccrerr.IO, "create backup before save", err, map[string]any{"path": s.path})
		}
	}

	if err := s.writeAndCommit(pf); err != nil {
		if hadExisting {
			if restoreErr := os.Rename(backupPath, s.path); restoreErr != nil {
				log.Error("failed to restore backup after save failure",
					"path", s.path, "restoreError", restoreErr, "originalError", err)
			}
		}
		return err
	}

	if hadExisting {
		if err := os.Remove(backupPath); err != nil {
			log.Warn("failed to remove backup after successful save", "path", backupPath, "error", err)
		}
	}
	return nil
}

func (s *Store) writeAndCommit(pf *ProjectsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return ccrerr.New(ccrerr.Perm, "create projects directory", err, map[string]any{"path": s.path})
	}
	body, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return ccrerr.New(ccrerr.Invalid, "marshal projects file", err, nil)
	}
	content := append([]byte(projectsHeader), body...)
	content = append(content, '\n')
	if err := os.WriteFile(s.path, content, 0o644); err != nil {
		return ccrerr.New(ccrerr.IO, "write projects file", err, map[string]any{"path": s.path})
	}
	return nil
}

func ensureWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ccrerr.New(ccrerr.IO, "stat projects directory", err, map[string]any{"path": dir})
	}
	if !info.IsDir() {
		return ccrerr.New(ccrerr.Perm, "projects directory path is not a directory", nil, map[string]any{"path": dir})
	}
	probe := filepath.Join(dir, ".ccr-write-probe")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return ccrerr.New(ccrerr.Perm, "projects directory is not writable", err, map[string]any{"path": dir})
	}
	_ = f.Close()
	_ = os.Remove(probe)
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	return os.WriteFile(dst, data, mode)
}

package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store keeps the files a run produced: test reports, scan results, stage logs.
// One folder per run under the root.
type Store struct {
	root string
}

type Artifact struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func NewStore(root string) (*Store, error) {
	err := os.MkdirAll(root, 0754)
	if err != nil {
		return nil, fmt.Errorf("cannot create artifact folder %s", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) RunDir(runID string) (string, error) {
	dir, err := s.safePath(runID, ".")
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(dir, 0754)
	if err != nil {
		return "", fmt.Errorf("cannot create run folder %s", err)
	}
	return dir, nil
}

// LogWriter opens the log file of a stage for appending
func (s *Store) LogWriter(runID string, stage string) (io.WriteCloser, error) {
	path, err := s.safePath(runID, filepath.Join("logs", stage+".log"))
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(filepath.Dir(path), 0754)
	if err != nil {
		return nil, fmt.Errorf("cannot create log folder %s", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func (s *Store) Save(runID string, name string, content []byte) error {
	path, err := s.safePath(runID, name)
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(path), 0754)
	if err != nil {
		return fmt.Errorf("cannot create artifact folder %s", err)
	}
	return os.WriteFile(path, content, 0644)
}

func (s *Store) Open(runID string, name string) (io.ReadCloser, error) {
	path, err := s.safePath(runID, name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open artifact %s: %s", name, err)
	}
	return file, nil
}

// List walks the run folder, names are relative paths
func (s *Store) List(runID string) ([]Artifact, error) {
	dir, err := s.safePath(runID, ".")
	if err != nil {
		return nil, err
	}

	artifacts := []Artifact{}
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, Artifact{Name: relative, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot list artifacts of %s: %s", runID, err)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Name < artifacts[j].Name
	})
	return artifacts, nil
}

// safePath keeps every access inside the run's folder
func (s *Store) safePath(runID string, name string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, "/\\") {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("artifact name %q escapes the run folder", name)
	}

	runDir := filepath.Join(s.root, runID)
	path := filepath.Clean(filepath.Join(runDir, name))
	if path != runDir && !strings.HasPrefix(path, runDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("artifact name %q escapes the run folder", name)
	}
	return path, nil
}

package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"appshots/internal/models"
)

// ErrProjectNotFound is returned when no project exists for an id.
var ErrProjectNotFound = errors.New("project not found")

// ErrNoScreenshots is returned when a project has nothing to render.
var ErrNoScreenshots = errors.New("project has no screenshots")

// ErrNoCopy is returned when a project has no generated copy yet.
var ErrNoCopy = errors.New("project copy not generated")

// Project is the export-relevant part of a stored project.
type Project struct {
	ID              string       `json:"id"`
	AppName         string       `json:"appName"`
	TemplateStyle   string       `json:"templateStyle"`
	ScreenshotPaths []string     `json:"screenshotPaths"`
	GeneratedCopy   *models.Copy `json:"generatedCopy,omitempty"`
}

// Source loads projects and their screenshot bytes.
type Source interface {
	Load(ctx context.Context, id string) (Project, error)
	Screenshots(ctx context.Context, p Project) ([][]byte, error)
	Screenshot(ctx context.Context, p Project, index int) ([]byte, error)
}

// DirSource reads {root}/{id}/project.json with screenshot paths relative to
// the project directory.
type DirSource struct {
	root string
}

// NewDirSource returns a Source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

func (s *DirSource) projectDir(id string) (string, error) {
	if id == "" || !filepath.IsLocal(id) || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrProjectNotFound, id)
	}
	return filepath.Join(s.root, id), nil
}

// Load reads and decodes project.json.
func (s *DirSource) Load(ctx context.Context, id string) (Project, error) {
	if err := ctx.Err(); err != nil {
		return Project{}, err
	}
	dir, err := s.projectDir(id)
	if err != nil {
		return Project{}, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "project.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return Project{}, fmt.Errorf("%w: %q", ErrProjectNotFound, id)
	}
	if err != nil {
		return Project{}, fmt.Errorf("read project %s: %w", id, err)
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("decode project %s: %w", id, err)
	}
	p.ID = id
	return p, nil
}

// Screenshots reads every screenshot of p in order.
func (s *DirSource) Screenshots(ctx context.Context, p Project) ([][]byte, error) {
	if len(p.ScreenshotPaths) == 0 {
		return nil, ErrNoScreenshots
	}
	dir, err := s.projectDir(p.ID)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(p.ScreenshotPaths))
	for _, rel := range p.ScreenshotPaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("screenshot path %q escapes project directory", rel)
		}
		data, err := os.ReadFile(filepath.Join(dir, rel))
		if err != nil {
			return nil, fmt.Errorf("read screenshot %s: %w", rel, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// Screenshot reads one screenshot of p.
func (s *DirSource) Screenshot(ctx context.Context, p Project, index int) ([]byte, error) {
	if index < 0 || index >= len(p.ScreenshotPaths) {
		return nil, fmt.Errorf("screenshot index %d out of range", index)
	}
	one := p
	one.ScreenshotPaths = p.ScreenshotPaths[index : index+1]
	shots, err := s.Screenshots(ctx, one)
	if err != nil {
		return nil, err
	}
	return shots[0], nil
}

// Package seed imports template definitions from YAML files.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/garyjia/approval-flow/internal/application/service"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Importer stores templates whose names are not yet taken
type Importer interface {
	ImportTemplates(ctx context.Context, inputs []service.TemplateInput) (int, error)
}

// Decode reads every YAML document in r as one template. Unknown keys are
// rejected so typos in a seed file surface at startup.
func Decode(r io.Reader) ([]service.TemplateInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out []service.TemplateInput
	for {
		var in service.TemplateInput
		err := dec.Decode(&in)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if in.Name == "" && len(in.Nodes) == 0 {
			continue
		}
		out = append(out, in)
	}
}

// LoadDir decodes every .yaml and .yml file at the root of fsys, in file name order
func LoadDir(fsys fs.FS) ([]service.TemplateInput, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []service.TemplateInput
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		inputs, err := Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		all = append(all, inputs...)
	}
	return all, nil
}

// Seeder imports the templates of a seed directory on startup
type Seeder struct {
	importer Importer
	logger   *zap.Logger
}

// NewSeeder creates a new Seeder
func NewSeeder(importer Importer, logger *zap.Logger) *Seeder {
	return &Seeder{importer: importer, logger: logger}
}

// Run imports dir. An empty dir or a missing directory imports nothing.
func (s *Seeder) Run(ctx context.Context, dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Template seed directory not found", zap.String("dir", dir))
		return 0, nil
	}

	inputs, err := LoadDir(os.DirFS(dir))
	if err != nil {
		return 0, fmt.Errorf("load seed templates: %w", err)
	}

	created, err := s.importer.ImportTemplates(ctx, inputs)
	if err != nil {
		return created, fmt.Errorf("import seed templates: %w", err)
	}

	s.logger.Info("Template seeds imported",
		zap.String("dir", dir),
		zap.Int("found", len(inputs)),
		zap.Int("created", created))
	return created, nil
}

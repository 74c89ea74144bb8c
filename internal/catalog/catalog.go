// Package catalog loads incentive programs and projects from YAML or JSON
// files. The production catalog lives in the surrounding CRUD system;
// file loading serves the CLI, fixtures, and local development.
package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/incentedge/match-engine/internal/model"
)

// programFile is the on-disk wrapper. A bare list is also accepted.
type programFile struct {
	Programs []model.IncentiveProgram `json:"programs" yaml:"programs"`
}

// LoadPrograms reads a program catalog from a YAML or JSON file. The file
// may hold either a top-level "programs" list or a bare list.
func LoadPrograms(path string) ([]model.IncentiveProgram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read programs %s", path)
	}

	var wrapper programFile
	var bare []model.IncentiveProgram

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &wrapper); err != nil || len(wrapper.Programs) == 0 {
			if bareErr := json.Unmarshal(data, &bare); bareErr != nil {
				return nil, eris.Wrap(firstErr(err, bareErr), "catalog: parse programs json")
			}
			wrapper.Programs = bare
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &wrapper); err != nil || len(wrapper.Programs) == 0 {
			if bareErr := yaml.Unmarshal(data, &bare); bareErr != nil {
				return nil, eris.Wrap(firstErr(err, bareErr), "catalog: parse programs yaml")
			}
			wrapper.Programs = bare
		}
	default:
		return nil, eris.Errorf("catalog: unsupported program file extension %q", ext)
	}

	if len(wrapper.Programs) == 0 {
		return nil, eris.Errorf("catalog: no programs in %s", path)
	}
	if err := validatePrograms(wrapper.Programs); err != nil {
		return nil, err
	}
	return wrapper.Programs, nil
}

func validatePrograms(programs []model.IncentiveProgram) error {
	seen := make(map[string]bool, len(programs))
	for i, p := range programs {
		if p.ID == "" {
			return eris.Errorf("catalog: program %d has no id", i)
		}
		if seen[p.ID] {
			return eris.Errorf("catalog: duplicate program id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Name == "" {
			return eris.Errorf("catalog: program %q has no name", p.ID)
		}
		switch p.Category {
		case model.CategoryFederal, model.CategoryState, model.CategoryLocal, model.CategoryUtility:
		default:
			return eris.Errorf("catalog: program %q has unknown category %q", p.ID, p.Category)
		}
		if p.Category != model.CategoryFederal && p.State == "" {
			return eris.Errorf("catalog: non-federal program %q has no state", p.ID)
		}
	}
	return nil
}

// LoadProject reads a single project from a YAML or JSON file.
func LoadProject(path string) (*model.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read project %s", path)
	}

	var project model.Project
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &project)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &project)
	default:
		return nil, eris.Errorf("catalog: unsupported project file extension %q", ext)
	}
	if err != nil {
		return nil, eris.Wrap(err, "catalog: parse project")
	}

	if project.ID == "" {
		return nil, eris.New("catalog: project has no id")
	}
	if len(project.State) != 2 {
		return nil, eris.Errorf("catalog: project state %q is not a 2-letter code", project.State)
	}
	project.State = strings.ToUpper(project.State)
	return &project, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

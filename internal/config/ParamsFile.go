package config

import (
	"fmt"
	"os"

	"github.com/ManiFed/curvelab/internal/types"
	"gopkg.in/yaml.v3"
)

// LoadParametersFile reads an engine parameter set from a YAML file, starting
// from the defaults so a file only needs to name the fields it overrides. The
// merged set is validated as a whole; an invalid file is rejected wholesale.
func LoadParametersFile(path string) (types.EngineParameters, error) {
	params := DefaultEngineParameters

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("failed to read parameters file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &params); err != nil {
		return DefaultEngineParameters, fmt.Errorf("failed to parse parameters file %s: %w", path, err)
	}

	if err := params.Validate(); err != nil {
		return DefaultEngineParameters, fmt.Errorf("parameters file %s rejected: %w", path, err)
	}

	return params, nil
}

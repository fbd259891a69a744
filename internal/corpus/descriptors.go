package corpus

import (
	"fmt"
	"os"

	"github.com/spboyer/portsel/internal/models"
	"gopkg.in/yaml.v3"
)

type descriptorFile struct {
	Configurations [][]string `yaml:"configurations"`
}

// LoadDescriptors reads a YAML file listing one token list per configuration:
//
//	configurations:
//	  - ["-mode=2", "-speed=8,8192"]
//	  - ["-mode=2", "-mixing=2"]
//
// The list order fixes cost-vector alignment.
func LoadDescriptors(path string) ([]models.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptors: %w", err)
	}
	configs, err := ParseDescriptors(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return configs, nil
}

// ParseDescriptors decodes descriptor YAML.
func ParseDescriptors(data []byte) ([]models.Configuration, error) {
	var f descriptorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Configurations) == 0 {
		return nil, fmt.Errorf("no configurations listed")
	}
	out := make([]models.Configuration, len(f.Configurations))
	for i, tokens := range f.Configurations {
		out[i] = models.Configuration{Index: i, Descriptor: models.Descriptor(tokens)}
	}
	return out, nil
}

package pipeline

import "github.com/m3-mcp/m3/internal/config"

// PresetFunc builds the tool list a named preset contributes to a pipeline.
type PresetFunc func(cfg *config.Config) ([]Tool, error)

// presetRegistry holds named presets. Loading a default pipeline from a
// preset is out of scope; what's implemented here is the lookup mechanism
// and its unknown-name suggestion, so RegisterPreset is exercised only by
// tests and any future preset package.
var presetRegistry = map[string]PresetFunc{}

// RegisterPreset adds a named preset to the registry used by WithPreset.
func RegisterPreset(name string, fn PresetFunc) {
	presetRegistry[name] = fn
}

func presetNames() []string {
	names := make([]string, 0, len(presetRegistry))
	for name := range presetRegistry {
		names = append(names, name)
	}
	return names
}

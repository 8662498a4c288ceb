package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Target selects the code generation target.
type Target string

const (
	// TargetC emits sequential C. Data parallel passes are skipped.
	TargetC Target = "c"
	// TargetCUDA emits CUDA C and runs the data parallel passes.
	TargetCUDA Target = "cuda"
)

// Config selects which passes run and in what order.
type Config struct {
	Target   Target   `toml:"target"`
	Coalesce bool     `toml:"coalesce"`
	Passes   []string `toml:"passes"`
}

// DefaultConfig targets CUDA with coalescing enabled.
func DefaultConfig() Config {
	return Config{Target: TargetCUDA, Coalesce: true}
}

// LoadConfig reads a TOML config file. Keys missing from the file keep
// their DefaultConfig values; unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return finishConfig(path, cfg, meta)
}

// ParseConfig decodes TOML config text the way LoadConfig does.
func ParseConfig(data string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return finishConfig("config", cfg, meta)
}

func finishConfig(source string, cfg Config, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", source, strings.Join(keys, ", "))
	}
	cfg.Target = Target(strings.ToLower(strings.TrimSpace(string(cfg.Target))))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", source, err)
	}
	return cfg, nil
}

// Validate checks the target and every explicitly named pass.
func (c Config) Validate() error {
	if c.Target != TargetC && c.Target != TargetCUDA {
		return fmt.Errorf("unknown target %q (want %q or %q)", c.Target, TargetC, TargetCUDA)
	}
	for _, name := range c.Passes {
		if _, ok := lookupPass(name); !ok {
			return fmt.Errorf("unknown pass %q (known: %s)", name, strings.Join(PassNames(), ", "))
		}
	}
	return nil
}

// PassOrder returns the pass names the config runs, in order. An explicit
// Passes list wins over the target defaults.
func (c Config) PassOrder() []string {
	if len(c.Passes) > 0 {
		return slices.Clone(c.Passes)
	}
	if c.Target == TargetC {
		return []string{PassRemoveRedundant, PassConvertZipWith1}
	}
	var order []string
	if c.Coalesce {
		order = append(order, PassCoalesceDataParallel)
	}
	order = append(order, PassSplitDataParallel, PassFuseUnzipMapZip, PassRemoveRedundant, PassConvertZipWith1)
	if c.Coalesce {
		order = append(order, PassCoalesceParallelMap)
	}
	return order
}

package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/parsynth/internal/ir"
)

// NetworkDecl is one network found under the top-level "network" struct.
type NetworkDecl struct {
	Name     string
	Snapshot *ir.Snapshot
}

// LoadResult contains the networks loaded from a directory or file.
type LoadResult struct {
	Networks  []NetworkDecl
	FileCount int
}

// Find returns the declaration called name. An empty name selects the
// only network when exactly one was loaded.
func (r *LoadResult) Find(name string) (NetworkDecl, error) {
	if name == "" {
		if len(r.Networks) == 1 {
			return r.Networks[0], nil
		}
		return NetworkDecl{}, fmt.Errorf("%d networks loaded, choose one by name", len(r.Networks))
	}
	for _, d := range r.Networks {
		if d.Name == name {
			return d, nil
		}
	}
	return NetworkDecl{}, fmt.Errorf("network %q not found", name)
}

// LoadNetworks loads every network declared under "network" in path.
// path is either a directory holding one CUE package or a single .cue
// file. Every network is compiled; errors are collected, not fail-fast.
func LoadNetworks(path string) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, []error{fmt.Errorf("network path: %w", err)}
	}

	dir, args := path, []string{"."}
	fileCount := 0
	if info.IsDir() {
		files, err := findCUEFiles(path)
		if err != nil {
			return nil, []error{fmt.Errorf("scanning %s: %w", path, err)}
		}
		if len(files) == 0 {
			return nil, []error{fmt.Errorf("no CUE files found in %s", path)}
		}
		fileCount = len(files)
	} else {
		dir, args = filepath.Dir(path), []string{"./" + filepath.Base(path)}
		fileCount = 1
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", path)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{fmt.Errorf("building CUE value: %w", formatCUEError(err))}
	}
	return compileNetworks(value, fileCount)
}

// LoadNetworksString compiles CUE source text the way LoadNetworks
// compiles files.
func LoadNetworksString(src string) (*LoadResult, []error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	return compileNetworks(value, 0)
}

func compileNetworks(value cue.Value, fileCount int) (*LoadResult, []error) {
	result := &LoadResult{FileCount: fileCount}
	netsVal := value.LookupPath(cue.ParsePath("network"))
	if !netsVal.Exists() {
		return result, []error{&CompileError{Field: "network", Message: "no networks declared", Pos: value.Pos()}}
	}
	iter, err := netsVal.Fields()
	if err != nil {
		return result, []error{formatCUEError(err)}
	}
	var errs []error
	for iter.Next() {
		snap, err := CompileNetwork(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("network %s: %w", iter.Label(), err))
			continue
		}
		result.Networks = append(result.Networks, NetworkDecl{Name: iter.Label(), Snapshot: snap})
	}
	if len(result.Networks) == 0 && len(errs) == 0 {
		errs = append(errs, &CompileError{Field: "network", Message: "no networks declared", Pos: netsVal.Pos()})
	}
	return result, errs
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

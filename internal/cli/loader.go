package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/parsynth/internal/compiler"
	"github.com/roach88/parsynth/internal/ir"
)

// Error code constants shared by all CLI commands. Network validation
// reports the compiler's E2xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load or build failed
	ErrCodeNotFound    = "E005" // Path, network or run not found
	ErrCodeCompile     = "E006" // Network description does not compile
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeConfig      = "E008" // Pipeline config rejected
	ErrCodeStore       = "E009" // Run store cannot be opened or read
	ErrCodePipeline    = "E010" // A pass or the scheduler failed
	ErrCodeLoop        = "E011" // Combinational loop
	ErrCodeReplay      = "E012" // Replay diverged from the recorded run
	ErrCodeScenario    = "E013" // A scenario failed
)

// loadNetworks loads every network under path. Load and compile errors are
// reported through f and returned as a command error.
func loadNetworks(f *OutputFormatter, path string) (*compiler.LoadResult, error) {
	res, errs := compiler.LoadNetworks(path)
	if len(errs) > 0 {
		return nil, reportLoadErrors(f, errs)
	}
	f.VerboseLog("Loaded %d network(s) from %d CUE file(s) in %s", len(res.Networks), res.FileCount, path)
	return res, nil
}

// loadNetwork loads path, selects the network called name (or the only one)
// and builds it. Invalid networks are reported with their E2xx codes.
func loadNetwork(f *OutputFormatter, path, name string) (compiler.NetworkDecl, *ir.Network, error) {
	res, err := loadNetworks(f, path)
	if err != nil {
		return compiler.NetworkDecl{}, nil, err
	}
	decl, err := res.Find(name)
	if err != nil {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return compiler.NetworkDecl{}, nil, WrapExitError(ExitCommandError, "selecting network", err)
	}
	if verrs := compiler.Validate(decl.Snapshot); len(verrs) > 0 {
		return decl, nil, reportValidationErrors(f, decl.Name, verrs)
	}
	n, err := compiler.BuildSnapshot(decl.Snapshot)
	if err != nil {
		_ = f.Error(ErrCodeCompile, err.Error(), nil)
		return decl, nil, WrapExitError(ExitFailure, "building network "+decl.Name, err)
	}
	f.VerboseLog("Built network %s: %d process(es)", decl.Name, n.NumProcesses())
	return decl, n, nil
}

// classifyLoadError maps a loader error to a CLI error code.
func classifyLoadError(err error) string {
	var compileErr *compiler.CompileError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound
	case errors.As(err, &compileErr):
		return ErrCodeCompile
	default:
		return ErrCodeLoadFailed
	}
}

func reportLoadErrors(f *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		cliErrors[i] = CLIError{Code: classifyLoadError(err), Message: err.Error()}
	}

	if f.Format == "json" {
		if err := f.Fail(cliErrors[0].Code, cliErrors[0].Message, cliErrors); err != nil {
			return err
		}
	} else {
		f.Bad("Loading failed")
		fmt.Fprintln(f.Writer)
		for _, e := range cliErrors {
			fmt.Fprintf(f.Writer, "  %s: %s\n", e.Code, e.Message)
		}
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("loading failed with %d error(s)", len(errs)))
}

func reportValidationErrors(f *OutputFormatter, network string, verrs []compiler.ValidationError) error {
	if f.Format == "json" {
		if err := f.Fail(verrs[0].Code, verrs[0].Message, verrs); err != nil {
			return err
		}
	} else {
		f.Bad("Network %s is invalid", network)
		fmt.Fprintln(f.Writer)
		for _, e := range verrs {
			fmt.Fprintf(f.Writer, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("network %s: %d validation error(s)", network, len(verrs)))
}

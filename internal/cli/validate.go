package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/parsynth/internal/compiler"
	"github.com/roach88/parsynth/internal/ir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Network string // only validate this network
}

// NetworkValidation is the validation outcome of one network.
type NetworkValidation struct {
	Name   string                     `json:"name"`
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	Loops  []compiler.LoopWarning     `json:"loops,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Networks []NetworkValidation `json:"networks"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate network structure and feedback loops",
		Long: `Validate the networks declared in a CUE package or file.

Reports every structural error with its E2xx code, then lists the feedback
loops of each valid network. A loop without a delay is combinational and
makes the network invalid.

Exit codes:
  0 - All networks valid
  1 - One or more networks invalid
  2 - Command error (path not found, CUE errors, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Network, "network", "", "validate only the named network")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := loadNetworks(formatter, path)
	if err != nil {
		return err
	}

	decls := loaded.Networks
	if opts.Network != "" {
		decl, err := loaded.Find(opts.Network)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "selecting network", err)
		}
		decls = []compiler.NetworkDecl{decl}
	}

	result := ValidationResult{Valid: true, Networks: make([]NetworkValidation, 0, len(decls))}
	for _, decl := range decls {
		formatter.VerboseLog("Validating network: %s", decl.Name)
		nv := validateNetwork(decl)
		if !nv.Valid {
			result.Valid = false
		}
		result.Networks = append(result.Networks, nv)
	}

	return outputValidation(formatter, result)
}

func validateNetwork(decl compiler.NetworkDecl) NetworkValidation {
	nv := NetworkValidation{Name: decl.Name, Valid: true}
	if verrs := compiler.Validate(decl.Snapshot); len(verrs) > 0 {
		nv.Valid = false
		nv.Errors = verrs
		return nv
	}
	n, err := ir.FromSnapshot(*decl.Snapshot)
	if err != nil {
		nv.Valid = false
		nv.Errors = []compiler.ValidationError{{Field: "network", Message: err.Error(), Code: compiler.ErrInvalidProcess}}
		return nv
	}
	nv.Loops = compiler.AnalyzeFeedback(n)
	if compiler.HasCombinationalLoop(nv.Loops) {
		nv.Valid = false
	}
	return nv
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	invalid := 0
	for _, nv := range result.Networks {
		if !nv.Valid {
			invalid++
		}
	}

	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		code := ErrCodeLoop
		for _, nv := range result.Networks {
			if len(nv.Errors) > 0 {
				code = nv.Errors[0].Code
				break
			}
		}
		if err := formatter.Fail(code, fmt.Sprintf("%d invalid network(s)", invalid), result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid network(s)", invalid))
	}

	for _, nv := range result.Networks {
		if nv.Valid {
			formatter.OK("%s", nv.Name)
		} else {
			formatter.Bad("%s", nv.Name)
		}
		for _, e := range nv.Errors {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
		}
		for _, loop := range nv.Loops {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", loop.Level, loop.Message)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid network(s)", invalid))
	}
	fmt.Fprintln(formatter.Writer)
	formatter.OK("All networks valid")
	return nil
}

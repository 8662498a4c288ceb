package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/parsynth/internal/analysis"
	"github.com/roach88/parsynth/internal/ir"
)

// SectionsOptions holds flags for the sections command.
type SectionsOptions struct {
	*RootOptions
	Network string
}

// SectionReport describes one contained section.
type SectionReport struct {
	Start        ir.Id     `json:"start"`
	End          ir.Id     `json:"end"`
	Branches     int       `json:"branches"`
	ChainLength  int       `json:"chain_length"`
	DataParallel bool      `json:"data_parallel"`
	Chains       [][]ir.Id `json:"chains"`
}

// SectionsResult holds the sections found in one network.
type SectionsResult struct {
	Network           string          `json:"network"`
	Sections          []SectionReport `json:"sections"`
	ParallelMapChains [][]ir.Id       `json:"parallel_map_chains"`
	DataParallelCount int             `json:"data_parallel_count"`
}

// NewSectionsCommand creates the sections command.
func NewSectionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SectionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sections <path>",
		Short: "Report contained and data-parallel sections",
		Long: `Run the pattern detector over a network without rewriting it.

Lists every contained section (an unzip whose branches all reach the same
zip), its branch chains and whether it is data parallel, followed by the
runs of adjacent parallel maps.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSections(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Network, "network", "", "network to analyze (required when several are declared)")

	return cmd
}

func runSections(opts *SectionsOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	decl, n, err := loadNetwork(formatter, path, opts.Network)
	if err != nil {
		return err
	}

	result, err := detectSections(n, analysis.NewDetector(n, analysis.WithLogger(opts.Logger())))
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "classifying sections", err)
	}
	result.Network = decl.Name

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	formatter.OK("%s: %d contained section(s), %d data parallel", result.Network, len(result.Sections), result.DataParallelCount)
	for _, s := range result.Sections {
		mark := "sequential"
		if s.DataParallel {
			mark = "data parallel"
		}
		fmt.Fprintf(formatter.Writer, "  %s--%s: %d branch(es) x %d leaf(s), %s\n",
			s.Start, s.End, s.Branches, s.ChainLength, mark)
	}
	for _, chain := range result.ParallelMapChains {
		fmt.Fprintf(formatter.Writer, "  parallel map chain: %v\n", chain)
	}
	return nil
}

func detectSections(n *ir.Network, d *analysis.Detector) (*SectionsResult, error) {
	result := &SectionsResult{Sections: []SectionReport{}, ParallelMapChains: [][]ir.Id{}}
	for _, s := range d.FindContainedSections() {
		parallel, err := d.IsDataParallel(s)
		if err != nil {
			return nil, err
		}
		// A branch ending in a sink has no chain to report.
		chains, err := d.BranchChains(s)
		if err != nil && !ir.IsIllegalState(err) {
			return nil, err
		}
		report := SectionReport{
			Start:        n.ID(s.Start),
			End:          n.ID(s.End),
			Branches:     len(n.OutPorts(s.Start)),
			DataParallel: parallel,
			Chains:       make([][]ir.Id, len(chains)),
		}
		for i, chain := range chains {
			report.Chains[i] = ids(n, chain)
		}
		if len(chains) > 0 {
			report.ChainLength = len(chains[0])
		}
		if parallel {
			result.DataParallelCount++
		}
		result.Sections = append(result.Sections, report)
	}
	for _, chain := range d.FindParallelMapChains() {
		result.ParallelMapChains = append(result.ParallelMapChains, ids(n, chain))
	}
	return result, nil
}

func ids(n *ir.Network, hs []ir.Handle) []ir.Id {
	out := make([]ir.Id, len(hs))
	for i, h := range hs {
		out[i] = n.ID(h)
	}
	return out
}

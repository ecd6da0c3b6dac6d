package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// ExtentInfo describes one extent of a scale.
type ExtentInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Size int    `json:"size"`
	Grid string `json:"grid,omitempty"`
}

// TransitionInfo describes one transition.
type TransitionInfo struct {
	Index int        `json:"index"`
	Last  bool       `json:"last"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// ScaleInfo describes a scenario's scale.
type ScaleInfo struct {
	Scenario     string           `json:"scenario"`
	Scale        string           `json:"scale"`
	Extents      []ExtentInfo     `json:"extents"`
	Cardinality  int              `json:"cardinality"`
	Slots        int              `json:"slots"`
	Multiplicity int              `json:"multiplicity"`
	Transitions  []TransitionInfo `json:"transitions"`
}

// NewScaleCommand creates the scale command.
func NewScaleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scale <scenario>",
		Short: "Describe a scenario's scale",
		Long: `Describe the scale a scenario runs over: its extents in layout order,
the number of offsets, slots per time step and the transitions the unit
will be stepped through.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScale(rootOpts, args[0], cmd)
		},
	}
}

func runScale(opts *RootOptions, path string, cmd *cobra.Command) error {
	s, err := LoadScenarioFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	sc, err := s.Scale.Build()
	if err != nil {
		return WrapExitError(ExitFailure, "invalid scale", err)
	}

	info := ScaleInfo{
		Scenario:     s.Name,
		Scale:        sc.String(),
		Cardinality:  sc.Cardinality(),
		Slots:        sc.Slots(),
		Multiplicity: sc.Multiplicity(),
		Extents:      []ExtentInfo{},
		Transitions:  []TransitionInfo{},
	}
	for _, e := range sc.Extents() {
		ei := ExtentInfo{Name: e.Name, Kind: e.Kind.String(), Size: e.Size}
		if g, ok := e.Grid(); ok {
			ei.Grid = fmt.Sprintf("%dx%d", g.Cols, g.Rows)
		}
		info.Extents = append(info.Extents, ei)
	}
	for tr := range sc.Transitions() {
		ti := TransitionInfo{Index: tr.Index(), Last: tr.IsLast()}
		if start, end, ok := tr.Period(); ok {
			ti.Start, ti.End = &start, &end
		}
		info.Transitions = append(info.Transitions, ti)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(info)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scenario: %s\n", info.Scenario)
	fmt.Fprintf(w, "Scale: %s\n", info.Scale)
	fmt.Fprintln(w)
	for _, e := range info.Extents {
		if e.Grid != "" {
			fmt.Fprintf(w, "  %-8s %-6s %s (%s)\n", e.Name, e.Kind, humanize.Comma(int64(e.Size)), e.Grid)
			continue
		}
		fmt.Fprintf(w, "  %-8s %-6s %s\n", e.Name, e.Kind, humanize.Comma(int64(e.Size)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Offsets:     %s\n", humanize.Comma(int64(info.Cardinality)))
	fmt.Fprintf(w, "Slots:       %s\n", humanize.Comma(int64(info.Slots)))
	fmt.Fprintf(w, "Transitions: %s\n", humanize.Comma(int64(len(info.Transitions))))
	if opts.Verbose {
		for _, t := range info.Transitions {
			fmt.Fprintf(w, "  t=%d", t.Index)
			if t.Start != nil {
				fmt.Fprintf(w, " %s .. %s", t.Start.Format(time.RFC3339), t.End.Format(time.RFC3339))
			}
			if t.Last {
				fmt.Fprint(w, " (last)")
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

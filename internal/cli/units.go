package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/procstep/internal/unit"
)

// UnitInfo describes a registered prototype.
type UnitInfo struct {
	ID          string   `json:"id"`
	Role        string   `json:"role"`
	Description string   `json:"description,omitempty"`
	Args        []string `json:"args,omitempty"`
}

// NewUnitsCommand creates the units command.
func NewUnitsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "units",
		Short:         "List registered unit prototypes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnits(rootOpts, unit.Default(), cmd)
		},
	}
}

func runUnits(opts *RootOptions, reg *unit.Registry, cmd *cobra.Command) error {
	protos := reg.Prototypes()
	infos := make([]UnitInfo, 0, len(protos))
	for _, p := range protos {
		info := UnitInfo{ID: p.ID, Role: string(p.Role), Description: p.Description}
		for _, a := range p.Args {
			info.Args = append(info.Args, a.String())
		}
		infos = append(infos, info)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(infos)
	}

	w := cmd.OutOrStdout()
	for _, info := range infos {
		fmt.Fprintf(w, "%-10s %-13s %s\n", info.ID, info.Role, info.Description)
		if len(info.Args) > 0 {
			fmt.Fprintf(w, "%-10s %-13s args: %s\n", "", "", strings.Join(info.Args, ", "))
		}
	}
	return nil
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/browserenv/internal/ledger"
	"github.com/giantswarm/browserenv/internal/slogger"
)

func openLedger(cmd *cobra.Command) (*ledger.Ledger, error) {
	cfg := ConfigFromContext(cmd.Context())
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return ledger.Open(cmd.Context(), cfg.Ledger, slogger.FromContext(cmd.Context()))
}

func newListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List instances recorded in the ledger",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			l, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer l.Close()

			entries, err := l.List(cmd.Context())
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []ledger.Entry{}
			}
			return writeOutput(cmd.OutOrStdout(), output, entries)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", FormatJSON, "format: json or yaml")
	return cmd
}

func newReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Kill browsers left behind by orchestrators that no longer run",
		Long: `Kill every browser recorded in the ledger whose owning browserenv
process has exited, and drop ledger rows of browsers that are already gone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer l.Close()

			reaped, err := l.Reap(cmd.Context())
			for _, e := range reaped {
				fmt.Fprintf(cmd.OutOrStdout(), "reaped %s (pid %d, owner %d)\n",
					e.Info.ProfileID, e.Info.PID, e.OwnerPID)
			}
			if err != nil {
				return err
			}
			if len(reaped) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to reap")
			}
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/incentedge/match-engine/internal/ingest"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Manage the historical award-statistics aggregate",
}

var statsMarkStale bool

var statsLoadCmd = &cobra.Command{
	Use:   "load <file>...",
	Short: "Load award-stats exports (csv or xlsx) into the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		loader := ingest.NewLoader(st)
		var total int64
		for _, path := range args {
			n, err := loader.LoadFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			total += n
		}
		fmt.Printf("loaded %d award stat rows from %d file(s)\n", total, len(args))

		if statsMarkStale {
			n, err := st.MarkProbabilitiesStale(cmd.Context(), "")
			if err != nil {
				return err
			}
			zap.L().Info("marked cached probabilities stale", zap.Int("rows", n))
			fmt.Printf("marked %d cached probabilities stale\n", n)
		}
		return nil
	},
}

var staleProgramID string

var statsMarkStaleCmd = &cobra.Command{
	Use:   "mark-stale",
	Short: "Flag cached probabilities for recomputation",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.MarkProbabilitiesStale(cmd.Context(), staleProgramID)
		if err != nil {
			return eris.Wrap(err, "stats: mark stale")
		}
		fmt.Printf("marked %d cached probabilities stale\n", n)
		return nil
	},
}

func init() {
	statsLoadCmd.Flags().BoolVar(&statsMarkStale, "mark-stale", false, "mark all cached probabilities stale after loading")
	statsMarkStaleCmd.Flags().StringVar(&staleProgramID, "program", "", "limit to one program id (default all)")
	statsCmd.AddCommand(statsLoadCmd, statsMarkStaleCmd)
	rootCmd.AddCommand(statsCmd)
}

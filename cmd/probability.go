package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/incentedge/match-engine/internal/catalog"
	"github.com/incentedge/match-engine/internal/matcher"
	"github.com/incentedge/match-engine/internal/monitoring"
	"github.com/incentedge/match-engine/internal/probability"
)

var probabilityFlags struct {
	projectPath  string
	programIDs   []string
	programsPath string
	output       string
}

var probabilityCmd = &cobra.Command{
	Use:   "probability",
	Short: "Estimate approval probability for a project against programs",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := catalog.LoadProject(probabilityFlags.projectPath)
		if err != nil {
			return err
		}
		programIDs := probabilityFlags.programIDs
		if probabilityFlags.programsPath != "" {
			programs, err := catalog.LoadPrograms(probabilityFlags.programsPath)
			if err != nil {
				return err
			}
			for _, p := range programs {
				programIDs = append(programIDs, p.ID)
			}
		}
		if len(programIDs) == 0 {
			return eris.New("at least one --program or a --programs-file is required")
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		metrics := monitoring.NewCollector()
		scorer := probability.NewScorer(st,
			probability.WithTTL(time.Duration(cfg.Probability.CacheTTLDays)*24*time.Hour),
			probability.WithMetrics(metrics))
		defer scorer.Close()

		items, err := scorer.ScoreBatch(cmd.Context(), project, programIDs, probability.BatchOptions{
			Concurrency: cfg.Probability.BatchConcurrency,
			QPS:         cfg.Probability.BatchQPS,
		})
		if err != nil {
			return err
		}

		snap := metrics.Snapshot()
		zap.L().Info("probability scoring complete",
			zap.Int("programs", len(items)),
			zap.Int64("cache_hits", snap.CacheHits),
			zap.Int64("cache_misses", snap.CacheMisses))

		if probabilityFlags.output == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(items), "probability: encode result")
		}
		return printProbabilityTable(items)
	},
}

func printProbabilityTable(items []probability.BatchItem) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Program", "Probability", "Confidence", "Sample", "Avg Award", "Based On", "Cached"})

	var data [][]string
	for _, item := range items {
		r := item.Result
		data = append(data, []string{
			item.ProgramID,
			fmt.Sprintf("%.2f%%", r.ApprovalProbability),
			string(r.ConfidenceLevel),
			strconv.Itoa(r.SampleSize),
			matcher.FormatCurrency(r.AvgComparableAward),
			r.BasedOn,
			strconv.FormatBool(r.Cached),
		})
	}
	if err := table.Bulk(data); err != nil {
		return eris.Wrap(err, "probability: build table")
	}
	return eris.Wrap(table.Render(), "probability: render table")
}

func init() {
	probabilityCmd.Flags().StringVar(&probabilityFlags.projectPath, "project", "", "project file (yaml or json)")
	probabilityCmd.Flags().StringSliceVar(&probabilityFlags.programIDs, "program", nil, "program id (repeatable)")
	probabilityCmd.Flags().StringVar(&probabilityFlags.programsPath, "programs-file", "", "score against every program in a catalog file")
	probabilityCmd.Flags().StringVar(&probabilityFlags.output, "output", "table", "output format: table or json")
	_ = probabilityCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(probabilityCmd)
}

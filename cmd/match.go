package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/incentedge/match-engine/internal/catalog"
	"github.com/incentedge/match-engine/internal/matcher"
	"github.com/incentedge/match-engine/internal/model"
)

var matchFlags struct {
	projectPath     string
	programsPath    string
	includePartial  bool
	prioritizeGreen bool
	maxResults      int
	output          string
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score a project against an incentive program catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := catalog.LoadProject(matchFlags.projectPath)
		if err != nil {
			return err
		}
		programs, err := catalog.LoadPrograms(matchFlags.programsPath)
		if err != nil {
			return err
		}

		m := matcher.New(cfg.Matcher)
		result := m.Match(project, programs, matcher.Options{
			IncludePartialMatches: matchFlags.includePartial,
			PrioritizeGreen:       matchFlags.prioritizeGreen,
			MaxResults:            matchFlags.maxResults,
		})

		zap.L().Info("matching complete",
			zap.String("project", project.ID),
			zap.Int("programs", len(programs)),
			zap.Int("matches", result.Summary.TotalMatches))

		if matchFlags.output == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(result), "match: encode result")
		}
		return printMatchTable(result)
	},
}

func printMatchTable(result *model.MatchingResult) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Rank", "Program", "Category", "Tier", "Score", "Est. Value"})

	var data [][]string
	for i, match := range result.Matches {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			match.Incentive.Name,
			string(match.Incentive.Category),
			string(match.Tier),
			fmt.Sprintf("%.4f", match.MatchScore),
			matcher.FormatCurrency(match.EstimatedValue),
		})
	}
	if err := table.Bulk(data); err != nil {
		return eris.Wrap(err, "match: build table")
	}
	if err := table.Render(); err != nil {
		return eris.Wrap(err, "match: render table")
	}

	fmt.Printf("\n%d matches, total potential value %s, average score %.4f\n",
		result.Summary.TotalMatches,
		matcher.FormatCurrency(result.Summary.TotalPotentialValue),
		result.Summary.AverageScore)
	return nil
}

func init() {
	matchCmd.Flags().StringVar(&matchFlags.projectPath, "project", "", "project file (yaml or json)")
	matchCmd.Flags().StringVar(&matchFlags.programsPath, "programs", "", "program catalog file (yaml or json)")
	matchCmd.Flags().BoolVar(&matchFlags.includePartial, "include-partial", false, "keep sub-threshold programs as tier low")
	matchCmd.Flags().BoolVar(&matchFlags.prioritizeGreen, "prioritize-green", false, "front IRA-flagged programs in the green subset")
	matchCmd.Flags().IntVar(&matchFlags.maxResults, "max-results", 0, "top matches limit (default from config)")
	matchCmd.Flags().StringVar(&matchFlags.output, "output", "table", "output format: table or json")
	_ = matchCmd.MarkFlagRequired("project")
	_ = matchCmd.MarkFlagRequired("programs")
	rootCmd.AddCommand(matchCmd)
}

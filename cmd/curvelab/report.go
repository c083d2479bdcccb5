package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/ManiFed/curvelab/internal/engine"
	"github.com/ManiFed/curvelab/internal/types"

	"github.com/olekukonko/tablewriter"
)

// printReport renders a console summary of the engine's current state: one
// row per regime, the champion metric breakdown, and the leading archive
// families.
func printReport(eng *engine.Engine) {
	fmt.Fprintf(os.Stdout, "\n=== CURVE DISCOVERY REPORT (generation %d) ===\n\n", eng.Generation())

	printRegimeTable(eng)
	printChampionTable(eng)
	printFamilyTable(eng)
}

func printRegimeTable(eng *engine.Engine) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Regime", "Gen", "Evaluated", "Population", "Champion Score", "Archived")

	for _, s := range eng.Status() {
		champ := "-"
		if s.ChampionScore != nil {
			champ = fmt.Sprintf("%.4f", *s.ChampionScore)
		}
		table.Append(
			string(s.Regime),
			fmt.Sprintf("%d", s.Generation),
			fmt.Sprintf("%d", s.Evaluated),
			fmt.Sprintf("%d", s.PopulationLen),
			champ,
			fmt.Sprintf("%d", s.ArchiveCount),
		)
	}

	table.Render()
}

func printChampionTable(eng *engine.Engine) {
	champs := eng.Champions()
	if len(champs) == 0 {
		fmt.Fprintln(os.Stdout, "\n  No champions yet")
		return
	}

	regimes := make([]types.RegimeID, 0, len(champs))
	for id := range champs {
		regimes = append(regimes, id)
	}
	sort.Slice(regimes, func(i, j int) bool { return regimes[i] < regimes[j] })

	fmt.Fprintln(os.Stdout, "\nChampion metrics (per-path averages):")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Regime", "Score", "Fees", "Slippage%", "ArbLeak", "Util", "LPvsHODL", "MaxDD", "Vol", "Stability")

	for _, id := range regimes {
		c := champs[id]
		table.Append(
			string(id),
			fmt.Sprintf("%.4f", c.Score),
			fmt.Sprintf("%.0f", c.Metrics.TotalFees),
			fmt.Sprintf("%.2f", c.Metrics.AvgSlippage),
			fmt.Sprintf("%.0f", c.Metrics.ArbLeakage),
			fmt.Sprintf("%.3f", c.Metrics.Utilization),
			fmt.Sprintf("%.4f", c.Metrics.LPvsHodl),
			fmt.Sprintf("%.3f", c.Metrics.MaxDrawdown),
			fmt.Sprintf("%.4f", c.Metrics.ReturnVolatility),
			fmt.Sprintf("%.4f", c.Stability),
		)
	}

	table.Render()
}

func printFamilyTable(eng *engine.Engine) {
	families := eng.FamilySummaries()
	if len(families) == 0 {
		return
	}

	const maxRows = 10
	if len(families) > maxRows {
		families = families[:maxRows]
	}

	fmt.Fprintf(os.Stdout, "\nTop archive families (%d archived total):\n", len(eng.Archive()))
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Family", "Count", "Best Score", "Mean Score", "Regimes")

	for _, f := range families {
		table.Append(
			f.FamilyKey,
			fmt.Sprintf("%d", f.Count),
			fmt.Sprintf("%.4f", f.BestScore),
			fmt.Sprintf("%.4f", f.MeanScore),
			fmt.Sprintf("%d", len(f.Regimes)),
		)
	}

	table.Render()
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dutylens/dutylens/internal/analyzer"
	"github.com/dutylens/dutylens/internal/dataset"
	"github.com/dutylens/dutylens/internal/engine"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

var (
	analyzeRulesFile string
	analyzeJSON      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pillar> <dataset.csv>",
	Short: "Analyze a local CSV extract offline",
	Long: `Analyze runs a pillar analysis against a local CSV file without a
server. With --rules it evaluates a YAML rule set; without it the pillar's
builtin analyzer runs with default thresholds.`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRulesFile, "rules", "", "YAML rule set file to evaluate")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit findings as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	p, ok := pillar.Parse(args[0])
	if !ok {
		return fmt.Errorf("unknown pillar %q (want one of %v)", args[0], pillar.All())
	}

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	dataRows, err := dataset.ParseCSV(f)
	if err != nil {
		return err
	}

	var findings []rules.Finding
	if analyzeRulesFile != "" {
		data, err := os.ReadFile(analyzeRulesFile)
		if err != nil {
			return err
		}
		var rs rules.RuleSet
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return fmt.Errorf("failed to parse rule set: %w", err)
		}
		rs.Pillar = p
		if err := rs.Validate(); err != nil {
			return err
		}
		findings = engine.EvaluateDataset(p, dataRows, &rs)
	} else {
		findings = runFallback(p, dataRows)
	}

	if analyzeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(findings)
	}

	if len(findings) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No findings across %d rows.\n", len(dataRows))
		return nil
	}

	for _, fd := range findings {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s (%s)\n", fd.Severity, fd.Title, fd.ID)
		for _, m := range fd.Messages {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", m.Text)
			if m.Extra != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", m.Extra)
			}
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d finding(s) across %d rows.\n", len(findings), len(dataRows))
	return nil
}

func runFallback(p pillar.Pillar, dataRows []rules.Row) []rules.Finding {
	switch p {
	case pillar.ProductsServices:
		return analyzer.AnalyzeProductsServices(dataRows, thresholds.DefaultProductsServices())
	case pillar.PriceValue:
		return analyzer.AnalyzePriceValue(dataRows, thresholds.DefaultPriceValue())
	case pillar.ConsumerUnderstanding:
		return analyzer.AnalyzeConsumerUnderstanding(dataRows, thresholds.DefaultConsumerUnderstanding())
	case pillar.ConsumerSupport:
		return analyzer.AnalyzeConsumerSupport(dataRows, thresholds.DefaultConsumerSupport())
	}
	return nil
}

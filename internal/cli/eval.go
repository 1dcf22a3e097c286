package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"docrag/internal/usecase"
)

var (
	evalTopK int
	evalJSON bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <cases.yaml>",
	Short: "Measure retrieval quality against labelled queries",
	Long: `Run each labelled query and report precision, recall, MRR and nDCG at k.

The cases file is a YAML list:
  - query: "dessert ideas"
    relevant: ["apple-pie.txt"]

Examples:
  docrag eval testdata/cases.yaml
  docrag eval cases.yaml -k 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().IntVarP(&evalTopK, "top-k", "k", 0, "number of results per query (default from config)")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output as JSON")
}

func runEval(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read cases: %w", err)
	}
	var cases []usecase.EvalCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return fmt.Errorf("failed to parse cases: %w", err)
	}

	retrieveUC, closeStore, err := newRetrieveUseCase(cmd.Context(), evalTopK)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := usecase.Evaluate(cmd.Context(), retrieveUC, cases)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if evalJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Println("RETRIEVAL EVALUATION")
	fmt.Println(strings.Repeat("=", 70))
	for i, r := range report.Results {
		fmt.Printf("%d. %q\n", i+1, r.Query)
		fmt.Printf("   retrieved: %s\n", strings.Join(r.Retrieved, ", "))
		fmt.Printf("   P=%.3f R=%.3f RR=%.3f nDCG=%.3f\n", r.Precision, r.Recall, r.ReciprocalRank, r.NDCG)
	}
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Cases:     %d (k=%d)\n", len(report.Results), retrieveUC.TopK())
	fmt.Printf("Precision: %.3f\n", report.Precision)
	fmt.Printf("Recall:    %.3f\n", report.Recall)
	fmt.Printf("MRR:       %.3f\n", report.MRR)
	fmt.Printf("nDCG:      %.3f\n", report.NDCG)
	return nil
}

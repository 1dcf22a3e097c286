package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var (
	queryTopK int
	queryJSON bool
	queryText bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "List the documents nearest to a query",
	Long: `Embed the query and list the nearest stored documents, most similar first.

Examples:
  docrag query "GenAI"
  docrag query "office hours" -k 5 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryText, "text", false, "show the first line of each document")
}

func newRetrieveUseCase(ctx context.Context, topK int) (*usecase.RetrieveUseCase, func() error, error) {
	cfg := GetConfig()
	embedder, st, err := openPipeline(ctx)
	if err != nil {
		return nil, nil, err
	}
	if topK <= 0 {
		topK = cfg.Retrieve.TopK
	}
	return usecase.NewRetrieveUseCase(embedder, st, topK, cfg.Retrieve.Timeout), st.Close, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	retrieveUC, closeStore, err := newRetrieveUseCase(cmd.Context(), queryTopK)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := retrieveUC.Retrieve(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if len(result) == 0 {
		fmt.Println("No documents found. Run 'docrag ingest' first.")
		return nil
	}

	fmt.Printf("Results for: %s\n\n", query)
	for _, hit := range result {
		fmt.Printf("%d. %s (distance %.4f)\n", hit.Rank, hit.ID, hit.Distance)
		if queryText {
			fmt.Printf("   %s\n", snippet(hit.Text, 100))
		}
	}
	return nil
}

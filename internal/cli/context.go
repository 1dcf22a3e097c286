package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var contextTopK int

var contextCmd = &cobra.Command{
	Use:   "context <question>",
	Short: "Print the context block for a question",
	Long: `Retrieve the nearest documents for the question and print them as a context
block with source ids, ready to prepend to a language model prompt.

Examples:
  docrag context "When is lab 4 due?"
  docrag context "grading policy" -k 2 > context.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().IntVarP(&contextTopK, "top-k", "k", 0, "number of documents (default from config)")
}

func runContext(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	retrieveUC, closeStore, err := newRetrieveUseCase(cmd.Context(), contextTopK)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := retrieveUC.Retrieve(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Print(usecase.Assemble(result, usecase.Template{
		Preamble:    cfg.Assemble.Preamble,
		EmptyNotice: cfg.Assemble.EmptyNotice,
	}))
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the collection backend, size and embedding model",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, st, err := openPipeline(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	info, err := st.Info(cmd.Context())
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Printf("Backend:    %s\n", info.Backend)
	fmt.Printf("Collection: %s\n", info.Name)
	fmt.Printf("Documents:  %d\n", info.Count)
	if info.Model != "" {
		fmt.Printf("Model:      %s\n", info.Model)
	}
	if info.Dimension > 0 {
		fmt.Printf("Dimension:  %d\n", info.Dimension)
	}
	return nil
}

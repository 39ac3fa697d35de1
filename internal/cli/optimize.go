package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ctxopt/internal/usecase"
)

var (
	optimizeMode   string
	optimizeQuery  string
	optimizeStrict bool
	optimizeJSON   bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <file>...",
	Short: "Reduce files to signatures, types, imports or exports",
	Long: `Reduce source files to the parts an LLM needs and report the token savings.

Modes: full, signatures, types_only, imports_only, exports_only.

Examples:
  ctxopt optimize internal/usecase/router.go
  ctxopt optimize api.ts --mode exports_only --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
	optimizeCmd.Flags().StringVarP(&optimizeMode, "mode", "m", "", "extraction mode (default from config)")
	optimizeCmd.Flags().StringVarP(&optimizeQuery, "query", "q", "", "question the content is for, used for caching")
	optimizeCmd.Flags().BoolVar(&optimizeStrict, "strict", false, "fail instead of exceeding the token budget")
	optimizeCmd.Flags().BoolVar(&optimizeJSON, "json", false, "output as JSON")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(buildOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	for _, path := range args {
		res, err := rt.engine.Optimize(cmd.Context(), usecase.OptimizeRequest{
			FilePath:     path,
			Mode:         optimizeMode,
			Query:        optimizeQuery,
			StrictBudget: optimizeStrict,
		})
		if err != nil {
			return err
		}

		if optimizeJSON {
			output, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(output))
			continue
		}
		fmt.Printf("--- %s (%s) %d -> %d tokens, %.1f%% saved ---\n",
			res.FilePath, res.Mode, res.OriginalTokens, res.OptimizedTokens, res.SavingsPercent)
		fmt.Println(res.Content)
		fmt.Println()
	}

	if !optimizeJSON {
		fmt.Println(rt.engine.BudgetStatus().Message)
	}
	return nil
}

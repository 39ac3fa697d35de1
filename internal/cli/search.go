package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ctxopt/internal/domain"
)

var (
	searchStrategy   string
	searchMaxResults int
	searchMode       string
	searchScope      []string
	searchIgnoreCase bool
	searchStrict     bool
	searchJSON       bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search code with automatic strategy selection",
	Long: `Search code. The query is classified (natural language, symbol, code
pattern or path) and routed to the literal, semantic or hybrid strategy,
falling back to the alternatives when a strategy fails. Large results are
reduced with the default extraction mode.

Examples:
  ctxopt search "how are sessions refreshed"
  ctxopt search NewRouter --strategy literal
  ctxopt search "func main() {" --scope cmd/ --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchStrategy, "strategy", "s", "", "auto, semantic, literal or hybrid (default from config)")
	searchCmd.Flags().IntVarP(&searchMaxResults, "max-results", "k", 0, "number of results (default from config)")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "", "extraction mode for large results")
	searchCmd.Flags().StringSliceVar(&searchScope, "scope", nil, "paths to search (default is the root directory)")
	searchCmd.Flags().BoolVarP(&searchIgnoreCase, "ignore-case", "i", false, "case-insensitive literal search")
	searchCmd.Flags().BoolVar(&searchStrict, "strict", false, "drop results that would exceed the token budget")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	opts := domain.SearchOptions{
		MaxResults:      searchMaxResults,
		CaseInsensitive: searchIgnoreCase,
		StrictBudget:    searchStrict,
	}
	var err error
	if searchStrategy != "" {
		if opts.Strategy, err = domain.ParseStrategy(searchStrategy); err != nil {
			return err
		}
	}
	if searchMode != "" {
		if opts.Mode, err = domain.ParseMode(searchMode); err != nil {
			return err
		}
	}

	scope := searchScope
	if len(scope) == 0 {
		scope = []string{GetRootDir()}
	}

	rt, err := buildRuntime(buildOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := rt.engine.Search(cmd.Context(), query, scope, opts)
	if searchJSON {
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(output))
		return err
	}
	if err != nil {
		printAttempts(out.StrategyResults)
		if errors.Is(err, domain.ErrAllStrategiesFailed) {
			return fmt.Errorf("search failed: every strategy failed")
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if len(out.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s (%s, %s query, confidence %.2f)\n\n",
		out.ResultCount, query, out.StrategyUsed, out.QueryAnalysis.Type, out.QueryAnalysis.Confidence)
	for i, r := range out.Results {
		loc := fmt.Sprintf("%s:L%d", r.FilePath, r.LineNumber)
		if r.EndLine > r.LineNumber {
			loc = fmt.Sprintf("%s-%d", loc, r.EndLine)
		}
		fmt.Printf("--- [%d] %s (score: %.2f) ---\n", i+1, loc, r.Score)
		text := r.Content
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
	fmt.Printf("%d tokens, %d ms", out.TokensUsed, out.TotalExecutionTimeMs)
	if out.FromCache {
		fmt.Print(", from cache")
	}
	if out.BudgetExceeded {
		fmt.Print(", budget exceeded")
	}
	fmt.Println()
	return nil
}

func printAttempts(attempts []domain.StrategyAttempt) {
	for _, a := range attempts {
		status := "ok"
		if !a.Success {
			status = a.Error
		}
		fmt.Printf("  %-8s %s\n", a.Strategy, status)
	}
}

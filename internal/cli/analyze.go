package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/classifier"
	"ctxopt/internal/domain"
)

var (
	analyzeFile string
	analyzeJSON bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [query]",
	Short: "Classify a query, or count the declarations in a file",
	Long: `Show how a query would be routed: its type, confidence, the strategy
chosen for it and the fallback order. With --file, report the structure
of a source file instead.

Examples:
  ctxopt analyze "where is the retry policy configured"
  ctxopt analyze --file internal/usecase/router.go`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "analyze the structure of a file")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFile != "" {
		return analyzeStructure(analyzeFile)
	}
	if len(args) == 0 {
		return fmt.Errorf("a query or --file is required")
	}

	query := strings.Join(args, " ")
	a := classifier.New(analyzer.NewTokenizer(analyzer.NewEstimator(GetConfig().Optimizer.CharsPerToken)))
	analysis := a.Analyze(query)
	s := classifier.Score(query)

	if analyzeJSON {
		output, _ := json.MarshalIndent(struct {
			Analysis domain.QueryAnalysis `json:"analysis"`
			Scores   classifier.Scores    `json:"scores"`
		}{analysis, s}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	alts := make([]string, len(analysis.AlternativeStrategies))
	for i, k := range analysis.AlternativeStrategies {
		alts[i] = k.String()
	}
	fmt.Printf("Query:       %s\n", query)
	fmt.Printf("Type:        %s (confidence %.2f)\n", analysis.Type, analysis.Confidence)
	fmt.Printf("Strategy:    %s\n", analysis.RecommendedStrategy)
	fmt.Printf("Fallbacks:   %s\n", strings.Join(alts, ", "))
	fmt.Printf("Terms:       %s\n", strings.Join(analysis.ExtractedTerms, ", "))
	fmt.Printf("Scores:      path %.2f, symbol %.2f, code %.2f, language %.2f\n",
		s.FilePath, s.SymbolLookup, s.CodePattern, s.NaturalLanguage)
	return nil
}

func analyzeStructure(path string) error {
	rt, err := buildRuntime(buildOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.engine.AnalyzeFile(path, "")
	if err != nil {
		return err
	}
	if analyzeJSON {
		res.Content = ""
		output, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	fmt.Printf("File:        %s\n", path)
	fmt.Printf("Lines:       %d\n", res.LineCount)
	fmt.Printf("Functions:   %d\n", res.FunctionCount)
	fmt.Printf("Classes:     %d\n", res.ClassCount)
	fmt.Printf("Types:       %d\n", res.TypeCount)
	fmt.Printf("Imports:     %d\n", res.ImportCount)
	return nil
}

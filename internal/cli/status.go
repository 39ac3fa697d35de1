package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ctxopt/config"
	"ctxopt/internal/domain"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index, budget and cache state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

type statusReport struct {
	Root      string              `json:"root"`
	IndexPath string              `json:"indexPath,omitempty"`
	Index     domain.Stats        `json:"index"`
	Budget    domain.BudgetStatus `json:"budget"`
	Cache     domain.CacheStats   `json:"cache"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(buildOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	report := statusReport{
		Root:   GetRootDir(),
		Budget: rt.engine.BudgetStatus(),
		Cache:  rt.engine.CacheStats(),
	}
	if rt.bolt != nil {
		report.IndexPath = config.IndexDBPath(report.Root)
		if report.Index, err = rt.indexer.Stats(); err != nil {
			return fmt.Errorf("failed to read index stats: %w", err)
		}
	}

	if statusJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Root:    %s\n", report.Root)
	if report.IndexPath == "" {
		fmt.Println("Index:   none (run 'ctxopt index')")
	} else {
		size := int64(0)
		if info, err := os.Stat(report.IndexPath); err == nil {
			size = info.Size()
		}
		fmt.Printf("Index:   %d files, %d chunks, %.0f avg tokens/chunk, %d KiB\n",
			report.Index.TotalDocs, report.Index.TotalChunks, report.Index.AvgChunkLen, size/1024)
	}
	fmt.Printf("Budget:  %s\n", report.Budget.Message)
	fmt.Printf("Cache:   %d entries, %d hits, %d misses\n",
		report.Cache.TotalEntries, report.Cache.Hits, report.Cache.Misses)
	return nil
}

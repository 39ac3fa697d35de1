package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var modeEnum = []string{"full", "signatures", "types_only", "imports_only", "exports_only"}

func optimizeFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "optimize_file",
		Description: "Reduce a source file to its signatures, types, imports or exports to save context tokens",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file to optimize",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "File content; read from file_path when omitted",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Extraction mode; the configured default when omitted",
					"enum":        modeEnum,
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The question the content is needed for; used as the cache key",
				},
				"strict_budget": map[string]interface{}{
					"type":        "boolean",
					"description": "Fail instead of exceeding the token budget",
					"default":     false,
				},
			},
			Required: []string{"file_path"},
		},
	}
}

func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search code with automatic strategy selection (literal, semantic or hybrid) and token-budgeted results",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query: natural language, a symbol, a code pattern or a path",
				},
				"scope": map[string]interface{}{
					"type":        "array",
					"description": "Directories or files to search; the working directory when omitted",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"strategy": map[string]interface{}{
					"type":        "string",
					"description": "Pin a strategy instead of choosing from the query",
					"enum":        []string{"auto", "semantic", "literal", "hybrid"},
					"default":     "auto",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"minimum":     1,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Extraction mode for large results",
					"enum":        modeEnum,
				},
				"case_insensitive": map[string]interface{}{
					"type":    "boolean",
					"default": false,
				},
				"strict_budget": map[string]interface{}{
					"type":        "boolean",
					"description": "Drop results that would exceed the token budget",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

func analyzeQueryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_query",
		Description: "Classify a query and show which search strategy would be used",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query to classify",
				},
			},
			Required: []string{"query"},
		},
	}
}

func getBudgetStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_budget_status",
		Description: "Show token budget usage",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func getCacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_cache_stats",
		Description: "Show similarity cache hit statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func resetBudgetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reset_budget",
		Description: "Reset used tokens to zero",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

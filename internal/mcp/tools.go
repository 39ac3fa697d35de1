package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"ctxopt/internal/domain"
	"ctxopt/internal/usecase"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// MCPError is returned for malformed requests. Failures of the operation
// itself are reported as tool-error results instead.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

func (s *Server) handleOptimizeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	path := getStringDefault(args, "file_path", "")
	if path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path parameter is required", map[string]interface{}{
			"param":  "file_path",
			"reason": "missing or empty",
		})
	}

	res, err := s.engine.Optimize(ctx, usecase.OptimizeRequest{
		FilePath:     path,
		Content:      getStringPtr(args, "content"),
		Mode:         getStringDefault(args, "mode", ""),
		Query:        getStringDefault(args, "query", ""),
		StrictBudget: getBoolDefault(args, "strict_budget", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatJSON(res)), nil
}

func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := getStringDefault(args, "query", "")
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	opts := domain.SearchOptions{
		MaxResults:      getIntDefault(args, "max_results", 0),
		CaseInsensitive: getBoolDefault(args, "case_insensitive", false),
		StrictBudget:    getBoolDefault(args, "strict_budget", false),
	}
	if v := getStringDefault(args, "strategy", ""); v != "" {
		kind, err := domain.ParseStrategy(v)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid strategy", map[string]interface{}{
				"param":   "strategy",
				"value":   v,
				"allowed": []string{"auto", "semantic", "literal", "hybrid"},
			})
		}
		opts.Strategy = kind
	}
	if v := getStringDefault(args, "mode", ""); v != "" {
		mode, err := domain.ParseMode(v)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
				"param":   "mode",
				"value":   v,
				"allowed": modeEnum,
			})
		}
		opts.Mode = mode
	}

	out, err := s.engine.Search(ctx, query, getStringSlice(args, "scope"), opts)
	if err != nil {
		result := mcp.NewToolResultError(err.Error())
		// The attempts explain why every strategy failed.
		result.Content = append(result.Content, mcp.NewTextContent(formatJSON(out.StrategyResults)))
		return result, nil
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleAnalyzeQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := getStringDefault(arguments(request), "query", "")
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
	}
	return mcp.NewToolResultText(formatJSON(s.engine.Analyze(query))), nil
}

func (s *Server) handleGetBudgetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(s.engine.BudgetStatus())), nil
}

func (s *Server) handleGetCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(s.engine.CacheStats())), nil
}

func (s *Server) handleResetBudget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.engine.ResetBudget()
	return mcp.NewToolResultText(formatJSON(s.engine.BudgetStatus())), nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringPtr distinguishes an absent argument (nil) from an empty one.
func getStringPtr(args map[string]interface{}, key string) *string {
	if val, ok := args[key].(string); ok {
		return &val
	}
	return nil
}

// getStringSlice accepts a JSON array of strings or a single string.
func getStringSlice(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

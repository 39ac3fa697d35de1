// Package literal runs an external exact-match search executable and parses
// its output into search results.
package literal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
	"ctxopt/internal/port"
)

// Dialect selects the command line and output format of the executable.
type Dialect string

const (
	// DialectNative is a search tool printing file:startLine:endLine:score:snippet
	// lines or JSON.
	DialectNative Dialect = "native"
	// DialectRipgrep drives rg and reads file:line:snippet lines.
	DialectRipgrep Dialect = "ripgrep"
)

const (
	DefaultTimeout = 30 * time.Second
	// waitDelay bounds how long Wait blocks on output pipes after the
	// process has been killed.
	waitDelay = 2 * time.Second
)

type Config struct {
	Binary  string
	Dialect Dialect
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client implements port.LiteralSearcher over a subprocess.
type Client struct {
	binary  string
	dialect Dialect
	timeout time.Duration
	logger  *slog.Logger
}

var _ port.LiteralSearcher = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectRipgrep
	}
	if cfg.Binary == "" {
		cfg.Binary = "rg"
		if cfg.Dialect == DialectNative {
			cfg.Binary = "search"
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		binary:  cfg.Binary,
		dialect: cfg.Dialect,
		timeout: cfg.Timeout,
		logger:  logging.OrDiscard(cfg.Logger).With("component", "literal"),
	}
}

// Search runs the executable once. A missing binary, a timeout, a non-zero
// exit status and unparsable output are all errors. The child is killed
// when ctx is done or the timeout expires.
func (c *Client) Search(ctx context.Context, req port.LiteralRequest) ([]domain.SearchResult, error) {
	bin, err := exec.LookPath(c.binary)
	if err != nil {
		return nil, fmt.Errorf("literal: %s not found in PATH: %w", c.binary, errors.Join(domain.ErrStrategyUnavailable, err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := c.args(req)
	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec // binary comes from configuration
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			c.logger.Warn("search timed out", "binary", c.binary, "elapsed", elapsed)
			return nil, fmt.Errorf("literal: %s after %s: %w", c.binary, elapsed.Round(time.Millisecond), domain.ErrStrategyTimeout)
		}
		return nil, fmt.Errorf("literal: %s: %w", c.binary, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			c.logger.Debug("search failed", "binary", c.binary, "status", exitErr.ExitCode(), "stderr", msg)
			return nil, fmt.Errorf("literal: %s exited with status %d: %s: %w", c.binary, exitErr.ExitCode(), msg, err)
		}
		return nil, fmt.Errorf("literal: running %s: %w", c.binary, err)
	}

	results, err := Parse(stdout.Bytes(), c.dialect)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("search done", "binary", c.binary, "results", len(results), "elapsed", elapsed)
	return results, nil
}

func (c *Client) args(req port.LiteralRequest) []string {
	var args []string
	switch c.dialect {
	case DialectRipgrep:
		args = append(args, "--line-number", "--with-filename", "--no-heading", "--color", "never", "--fixed-strings")
		if req.CaseInsensitive {
			args = append(args, "--ignore-case")
		}
		if !req.Recursive {
			args = append(args, "--max-depth", "1")
		}
		if req.MaxCount > 0 {
			args = append(args, "--max-count", strconv.Itoa(req.MaxCount))
		}
	default:
		if req.CaseInsensitive {
			args = append(args, "-i")
		}
		if req.Recursive {
			args = append(args, "-r")
		}
		if req.MaxCount > 0 {
			args = append(args, "-m", strconv.Itoa(req.MaxCount))
		}
		if req.IncludeContent {
			args = append(args, "--content")
		}
		if req.NoRerank {
			args = append(args, "--no-rerank")
		}
	}
	args = append(args, "--", req.Query)
	if len(req.Paths) == 0 {
		return append(args, ".")
	}
	return append(args, req.Paths...)
}

type jsonMatch struct {
	File       string  `json:"file"`
	Path       string  `json:"path"`
	FilePath   string  `json:"filePath"`
	StartLine  int     `json:"startLine"`
	Line       int     `json:"line"`
	LineNumber int     `json:"lineNumber"`
	EndLine    int     `json:"endLine"`
	Column     int     `json:"column"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
	Content    string  `json:"content"`
}

func (m jsonMatch) result() (domain.SearchResult, bool) {
	r := domain.SearchResult{
		FilePath:     firstNonEmpty(m.FilePath, m.File, m.Path),
		LineNumber:   firstPositive(m.StartLine, m.LineNumber, m.Line),
		EndLine:      m.EndLine,
		ColumnNumber: m.Column,
		Content:      firstNonEmpty(m.Content, m.Snippet),
		Score:        m.Score,
		Strategy:     domain.StrategyLiteral,
	}
	if r.FilePath == "" {
		return r, false
	}
	if r.Score == 0 {
		r.Score = 1
	}
	return r, true
}

// Parse reads tool output: a JSON array, JSON lines, or text lines in the
// dialect's format. Empty output is no results; anything else that does
// not parse is ErrInvalidOutput.
func Parse(out []byte, dialect Dialect) ([]domain.SearchResult, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var matches []jsonMatch
		if err := json.Unmarshal(trimmed, &matches); err != nil {
			return nil, fmt.Errorf("literal: decoding JSON output: %w", errors.Join(domain.ErrInvalidOutput, err))
		}
		results := make([]domain.SearchResult, 0, len(matches))
		for i, m := range matches {
			r, ok := m.result()
			if !ok {
				return nil, fmt.Errorf("literal: match %d has no file: %w", i, domain.ErrInvalidOutput)
			}
			results = append(results, r)
		}
		return results, nil
	case '{':
		return parseJSONLines(trimmed)
	}
	return parseLines(trimmed, dialect)
}

func parseJSONLines(out []byte) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var m jsonMatch
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("literal: line %d: %w", n, errors.Join(domain.ErrInvalidOutput, err))
		}
		r, ok := m.result()
		if !ok {
			return nil, fmt.Errorf("literal: line %d has no file: %w", n, domain.ErrInvalidOutput)
		}
		results = append(results, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("literal: reading output: %w", err)
	}
	return results, nil
}

func parseLines(out []byte, dialect Dialect) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		var (
			r  domain.SearchResult
			ok bool
		)
		if dialect == DialectRipgrep {
			r, ok = parseShortLine(line)
		} else {
			r, ok = parseLongLine(line)
		}
		if !ok {
			return nil, fmt.Errorf("literal: line %d %q: %w", n, truncate(line, 80), domain.ErrInvalidOutput)
		}
		results = append(results, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("literal: reading output: %w", err)
	}
	return results, nil
}

// parseLongLine reads file:startLine:endLine:score:snippet.
func parseLongLine(line string) (domain.SearchResult, bool) {
	parts := strings.SplitN(line, ":", 5)
	if len(parts) < 5 || parts[0] == "" {
		return domain.SearchResult{}, false
	}
	start, err1 := strconv.Atoi(parts[1])
	end, err2 := strconv.Atoi(parts[2])
	score, err3 := strconv.ParseFloat(parts[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return domain.SearchResult{}, false
	}
	return domain.SearchResult{
		FilePath:   parts[0],
		LineNumber: start,
		EndLine:    end,
		Score:      score,
		Content:    parts[4],
		Strategy:   domain.StrategyLiteral,
	}, true
}

// parseShortLine reads file:line:snippet.
func parseShortLine(line string) (domain.SearchResult, bool) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) < 3 || parts[0] == "" {
		return domain.SearchResult{}, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return domain.SearchResult{}, false
	}
	return domain.SearchResult{
		FilePath:   parts[0],
		LineNumber: n,
		EndLine:    n,
		Score:      1,
		Content:    parts[2],
		Strategy:   domain.StrategyLiteral,
	}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

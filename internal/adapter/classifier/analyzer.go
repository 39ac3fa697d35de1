// Package classifier labels free-text queries so the router can pick a
// retrieval strategy.
package classifier

import (
	"regexp"
	"strings"
	"unicode"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/domain"
)

// hybridRatio and hybridFloor decide when a runner-up signal is strong
// enough to make the query hybrid.
const (
	hybridRatio = 0.7
	hybridFloor = 0.5
)

// Scores are the independent signal strengths of a query, each in [0, 1].
type Scores struct {
	FilePath        float64 `json:"filePath"`
	SymbolLookup    float64 `json:"symbolLookup"`
	CodePattern     float64 `json:"codePattern"`
	NaturalLanguage float64 `json:"naturalLanguage"`
}

var (
	knownExt = regexp.MustCompile(`(?i)\.(go|ts|tsx|js|jsx|mjs|cjs|py|pyi|rs|java|kt|rb|php|c|h|cc|cpp|hpp|cs|swift|scala|md|json|ya?ml|toml|sql|sh|proto|html|css)$`)

	identifier = regexp.MustCompile(`^[A-Za-z_$][\w$]*((\.|::)[A-Za-z_$][\w$]*)*$`)

	callParens = regexp.MustCompile(`[\w$]\(`)
	declWord   = regexp.MustCompile(`\b(func|function|def|class|interface|struct|type|const|let|var|import|return|async|await|fn|impl|public|private|static)\s+[\w$]`)
	regexMeta  = regexp.MustCompile(`\\[swdbSWD]|\.\*|\.\+|\[\^|\(\?`)
)

var operators = []string{"=>", "==", "!=", "&&", "||", ":=", "->", "+=", "-=", "<=", ">=", "::", "===", "<-"}

var questionWords = map[string]bool{
	"how": true, "what": true, "where": true, "why": true, "when": true,
	"which": true, "who": true, "explain": true, "describe": true,
}

// connectives are function words that rarely occur in code searches.
var connectives = map[string]bool{
	"how": true, "what": true, "where": true, "why": true, "when": true,
	"which": true, "who": true, "does": true, "do": true, "is": true,
	"are": true, "was": true, "were": true, "can": true, "should": true,
	"would": true, "could": true, "the": true, "a": true, "an": true,
	"to": true, "of": true, "in": true, "for": true, "with": true,
	"that": true, "this": true, "and": true, "or": true, "about": true,
	"from": true, "into": true, "between": true, "all": true, "any": true,
}

// Analyzer classifies queries. It holds no per-query state.
type Analyzer struct {
	tokenizer *analyzer.Tokenizer
}

func New(tokenizer *analyzer.Tokenizer) *Analyzer {
	return &Analyzer{tokenizer: tokenizer}
}

// Analyze classifies query and recommends a strategy with its fallbacks.
func (a *Analyzer) Analyze(query string) domain.QueryAnalysis {
	scores := Score(query)
	qt, winner, confidence := classify(scores)

	analysis := domain.QueryAnalysis{
		Type:           qt,
		Confidence:     confidence,
		ExtractedTerms: a.Terms(query),
	}
	analysis.RecommendedStrategy, analysis.AlternativeStrategies = strategiesFor(qt, winner)
	return analysis
}

// Terms returns the distinct search terms of query in order, case
// preserved, without stopwords.
func (a *Analyzer) Terms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, f := range strings.FieldsFunc(query, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$')
	}) {
		if len(f) < 2 || a.tokenizer.IsStopword(f) || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// Score computes each signal independently.
func Score(query string) Scores {
	q := strings.TrimSpace(query)
	if q == "" {
		return Scores{}
	}
	words := strings.Fields(q)
	return Scores{
		FilePath:        pathScore(q, words),
		SymbolLookup:    symbolScore(words),
		CodePattern:     codeScore(q),
		NaturalLanguage: languageScore(q, words),
	}
}

func pathScore(q string, words []string) float64 {
	single := len(words) == 1
	hasSep := strings.ContainsAny(q, `/\`)
	switch {
	case single && hasSep && !regexMeta.MatchString(q):
		return 1.0
	case single && knownExt.MatchString(q):
		return 0.9
	case single && strings.Contains(q, "*") && strings.Contains(q, "."):
		return 0.8
	}
	for _, w := range words {
		if strings.ContainsAny(w, `/\`) && knownExt.MatchString(strings.Trim(w, `"'?,.`+"`")) {
			return 0.6
		}
	}
	return 0
}

func symbolScore(words []string) float64 {
	switch n := len(words); {
	case n == 1:
		w := words[0]
		if !identifier.MatchString(w) || knownExt.MatchString(w) {
			return 0
		}
		if compound(w) {
			return 1.0
		}
		return 0.6
	case n <= 3:
		compounds := 0
		for _, w := range words {
			if !identifier.MatchString(w) || connectives[strings.ToLower(w)] {
				return mixedSymbol(words)
			}
			if compound(w) {
				compounds++
			}
		}
		if compounds > 0 {
			return 0.8
		}
		return 0.7
	default:
		return mixedSymbol(words)
	}
}

// mixedSymbol scores an identifier embedded in prose.
func mixedSymbol(words []string) float64 {
	for _, w := range words {
		w = strings.Trim(w, `"'?,.()`+"`")
		if identifier.MatchString(w) && compound(w) {
			return 0.8
		}
	}
	return 0
}

// compound reports camelCase, PascalCase with several humps, snake_case
// or dotted identifiers.
func compound(w string) bool {
	if strings.ContainsAny(w, "_.$") || strings.Contains(w, "::") {
		return strings.Trim(w, "_.$:") != ""
	}
	for i, r := range w {
		if i > 0 && unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func codeScore(q string) float64 {
	score := 0.0
	if strings.ContainsAny(q, "{}") {
		score += 0.35
	}
	if callParens.MatchString(q) {
		score += 0.35
	}
	for _, op := range operators {
		if strings.Contains(q, op) {
			score += 0.35
			break
		}
	}
	if declWord.MatchString(q) {
		score += 0.35
	}
	if strings.Contains(q, ";") {
		score += 0.35
	}
	if regexMeta.MatchString(q) {
		score += 0.35
	}
	return clamp(score)
}

func languageScore(q string, words []string) float64 {
	score := 0.0
	for _, w := range words {
		if connectives[strings.ToLower(strings.Trim(w, `?,.!`))] {
			score += 0.35
		}
	}
	if questionWords[strings.ToLower(words[0])] {
		score += 0.2
	}
	if strings.HasSuffix(q, "?") {
		score += 0.2
	}
	if len(words) >= 3 && score > 0 {
		score += 0.1
	}
	return clamp(score)
}

// classify picks the strongest signal. Ties go to the more specific type
// (file path, then symbol, then code, then prose). A runner-up close to
// the winner makes the query hybrid.
func classify(s Scores) (domain.QueryType, domain.QueryType, float64) {
	ranked := []struct {
		t     domain.QueryType
		score float64
	}{
		{domain.QueryFilePath, s.FilePath},
		{domain.QuerySymbolLookup, s.SymbolLookup},
		{domain.QueryCodePattern, s.CodePattern},
		{domain.QueryNaturalLanguage, s.NaturalLanguage},
	}

	win, run := -1, -1
	for i, r := range ranked {
		switch {
		case win < 0 || r.score > ranked[win].score:
			win, run = i, win
		case run < 0 || r.score > ranked[run].score:
			run = i
		}
	}

	w, r := ranked[win].score, ranked[run].score
	if w == 0 {
		return domain.QueryNaturalLanguage, domain.QueryNaturalLanguage, 0
	}
	confidence := w / (w + r)
	if r >= hybridRatio*w && r >= hybridFloor {
		return domain.QueryHybrid, ranked[win].t, confidence
	}
	return ranked[win].t, ranked[win].t, confidence
}

func strategiesFor(qt, winner domain.QueryType) (domain.StrategyKind, []domain.StrategyKind) {
	switch qt {
	case domain.QueryNaturalLanguage:
		return domain.StrategySemantic, []domain.StrategyKind{domain.StrategyHybrid, domain.StrategyLiteral}
	case domain.QueryCodePattern, domain.QuerySymbolLookup, domain.QueryFilePath:
		return domain.StrategyLiteral, []domain.StrategyKind{domain.StrategyHybrid, domain.StrategySemantic}
	default:
		if winner == domain.QueryNaturalLanguage {
			return domain.StrategyHybrid, []domain.StrategyKind{domain.StrategySemantic, domain.StrategyLiteral}
		}
		return domain.StrategyHybrid, []domain.StrategyKind{domain.StrategyLiteral, domain.StrategySemantic}
	}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

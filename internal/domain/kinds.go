package domain

import (
	"fmt"
	"strings"
)

// ExtractionMode selects how much of a file the surgeon keeps.
type ExtractionMode int

const (
	ModeFull ExtractionMode = iota
	ModeSignatures
	ModeTypesOnly
	ModeImportsOnly
	ModeExportsOnly
)

// Modes lists every extraction mode in declaration order.
func Modes() []ExtractionMode {
	return []ExtractionMode{ModeFull, ModeSignatures, ModeTypesOnly, ModeImportsOnly, ModeExportsOnly}
}

func (m ExtractionMode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeSignatures:
		return "signatures"
	case ModeTypesOnly:
		return "types_only"
	case ModeImportsOnly:
		return "imports_only"
	case ModeExportsOnly:
		return "exports_only"
	default:
		return "unknown"
	}
}

// ParseMode accepts the canonical mode names and their short aliases.
func ParseMode(s string) (ExtractionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full":
		return ModeFull, nil
	case "signatures", "signature":
		return ModeSignatures, nil
	case "types_only", "types":
		return ModeTypesOnly, nil
	case "imports_only", "imports":
		return ModeImportsOnly, nil
	case "exports_only", "exports":
		return ModeExportsOnly, nil
	}
	return ModeFull, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m ExtractionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ExtractionMode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// StrategyKind identifies a retrieval strategy. StrategyAuto lets the
// router decide from the query analysis.
type StrategyKind int

const (
	StrategyAuto StrategyKind = iota
	StrategySemantic
	StrategyLiteral
	StrategyHybrid
)

// Strategies lists the concrete strategies.
func Strategies() []StrategyKind {
	return []StrategyKind{StrategySemantic, StrategyLiteral, StrategyHybrid}
}

func (s StrategyKind) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategySemantic:
		return "semantic"
	case StrategyLiteral:
		return "literal"
	case StrategyHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

func ParseStrategy(s string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "semantic":
		return StrategySemantic, nil
	case "literal":
		return StrategyLiteral, nil
	case "hybrid":
		return StrategyHybrid, nil
	}
	return StrategyAuto, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

func (s StrategyKind) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StrategyKind) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// QueryType is the classifier's label for a query.
type QueryType int

const (
	QueryNaturalLanguage QueryType = iota
	QueryCodePattern
	QuerySymbolLookup
	QueryFilePath
	QueryHybrid
)

func (q QueryType) String() string {
	switch q {
	case QueryNaturalLanguage:
		return "natural_language"
	case QueryCodePattern:
		return "code_pattern"
	case QuerySymbolLookup:
		return "symbol_lookup"
	case QueryFilePath:
		return "file_path"
	case QueryHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

func (q QueryType) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

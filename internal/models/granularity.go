package models

import (
	"fmt"
	"strings"
)

// Granularity is the structural level at which bounding regions are
// collected or rendered.
type Granularity int

const (
	GranularityPage Granularity = iota + 1
	GranularityBlock
	GranularityParagraph
	GranularityWord
	GranularitySymbol
)

// Granularities lists every level, outermost first.
var Granularities = []Granularity{
	GranularityPage,
	GranularityBlock,
	GranularityParagraph,
	GranularityWord,
	GranularitySymbol,
}

func (g Granularity) String() string {
	switch g {
	case GranularityPage:
		return "page"
	case GranularityBlock:
		return "block"
	case GranularityParagraph:
		return "paragraph"
	case GranularityWord:
		return "word"
	case GranularitySymbol:
		return "symbol"
	}
	return fmt.Sprintf("granularity(%d)", int(g))
}

// ParseGranularity maps a level name back to its Granularity.
func ParseGranularity(s string) (Granularity, error) {
	for _, g := range Granularities {
		if strings.EqualFold(s, g.String()) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown granularity %q", s)
}

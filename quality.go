package vecgraph

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality selects the search beam width for a query.
//
// The zero value is QualityBalanced.
type Quality struct {
	kind qualityKind
	ef   int
}

type qualityKind uint8

const (
	qualityBalanced qualityKind = iota
	qualityFast
	qualityAccurate
	qualityPerfect
	qualityCustom
)

var (
	// QualityFast uses ef = max(64, 2k).
	QualityFast = Quality{kind: qualityFast}
	// QualityBalanced uses ef = max(128, 4k).
	QualityBalanced = Quality{kind: qualityBalanced}
	// QualityAccurate uses ef = max(256, 8k).
	QualityAccurate = Quality{kind: qualityAccurate}
	// QualityPerfect skips the graph and scans every live vector.
	QualityPerfect = Quality{kind: qualityPerfect}
)

// QualityCustom uses ef = max(ef, k).
func QualityCustom(ef int) Quality {
	return Quality{kind: qualityCustom, ef: ef}
}

// EF returns the beam width for k results. It is zero for QualityPerfect.
func (q Quality) EF(k int) int {
	switch q.kind {
	case qualityFast:
		return max(64, 2*k)
	case qualityAccurate:
		return max(256, 8*k)
	case qualityPerfect:
		return 0
	case qualityCustom:
		return max(q.ef, k)
	default:
		return max(128, 4*k)
	}
}

// Exact reports whether q bypasses the graph.
func (q Quality) Exact() bool { return q.kind == qualityPerfect }

func (q Quality) validate() error {
	if q.kind > qualityCustom || (q.kind == qualityCustom && q.ef <= 0) {
		return fmt.Errorf("%w: %s", ErrInvalidQuality, q)
	}
	return nil
}

func (q Quality) String() string {
	switch q.kind {
	case qualityBalanced:
		return "balanced"
	case qualityFast:
		return "fast"
	case qualityAccurate:
		return "accurate"
	case qualityPerfect:
		return "perfect"
	case qualityCustom:
		return "custom(" + strconv.Itoa(q.ef) + ")"
	default:
		return fmt.Sprintf("quality(%d)", q.kind)
	}
}

// ParseQuality parses "fast", "balanced", "accurate", "perfect" or a
// positive integer beam width.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "balanced":
		return QualityBalanced, nil
	case "fast":
		return QualityFast, nil
	case "accurate":
		return QualityAccurate, nil
	case "perfect", "exact":
		return QualityPerfect, nil
	}
	ef, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || ef <= 0 {
		return Quality{}, fmt.Errorf("%w: %q", ErrInvalidQuality, s)
	}
	return QualityCustom(ef), nil
}

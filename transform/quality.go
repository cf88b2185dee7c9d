package transform

import (
	"fmt"
	"strings"
)

// Quality selects the rendering density of the transformed pages
type Quality int

const (
	QualityExtreme Quality = iota
	QualityHigh
	QualityNormal
	QualityLow
	QualityExtremeLow
)

var qualityNames = map[Quality]string{
	QualityExtreme:    "extreme",
	QualityHigh:       "high",
	QualityNormal:     "normal",
	QualityLow:        "low",
	QualityExtremeLow: "extremelow",
}

// ParseQuality parses one of extreme, high, normal, low or extremelow (any case)
func ParseQuality(s string) (Quality, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for q, n := range qualityNames {
		if n == name {
			return q, nil
		}
	}
	return 0, fmt.Errorf("unknown quality %q", s)
}

// PPI returns the pixel density pages are rendered at
func (q Quality) PPI() PPI {
	switch q {
	case QualityExtreme:
		return 400
	case QualityHigh:
		return 200
	case QualityNormal:
		return 120
	case QualityLow:
		return 72
	case QualityExtremeLow:
		return 10
	}
	// unreachable for values built by ParseQuality or the constants
	return 120
}

func (q Quality) String() string {
	if n, ok := qualityNames[q]; ok {
		return n
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// MarshalText implements encoding.TextMarshaler
func (q Quality) MarshalText() ([]byte, error) {
	n, ok := qualityNames[q]
	if !ok {
		return nil, fmt.Errorf("invalid quality %d", int(q))
	}
	return []byte(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (q *Quality) UnmarshalText(text []byte) error {
	parsed, err := ParseQuality(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

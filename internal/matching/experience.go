package matching

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	rangePattern   = regexp.MustCompile(`(\d+)\s*-\s*(\d+)`)
	openEndPattern = regexp.MustCompile(`(\d+)\s*\+`)
	barePattern    = regexp.MustCompile(`^\d+$`)
)

// ExperienceRange is a closed interval of years. Unbounded means Max is +inf.
type ExperienceRange struct {
	Min       int  `json:"min"`
	Max       int  `json:"max"`
	Unbounded bool `json:"unbounded,omitempty"`
}

func (r ExperienceRange) String() string {
	if r.Unbounded {
		return fmt.Sprintf("%d+", r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// IsFresher reports whether the range is exactly {0,0}.
func (r ExperienceRange) IsFresher() bool {
	return !r.Unbounded && r.Min == 0 && r.Max == 0
}

// Overlaps is the symmetric closed-interval overlap test.
func (r ExperienceRange) Overlaps(other ExperienceRange) bool {
	lowOK := other.Unbounded || r.Min <= other.Max
	highOK := r.Unbounded || r.Max >= other.Min
	return lowOK && highOK
}

// ParseExperience turns a free-text experience descriptor into a range.
// It returns nil when nothing usable can be derived; it never fails.
func ParseExperience(raw string) *ExperienceRange {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}

	if strings.Contains(s, "fresher") || s == "0" || s == "0-0" {
		return &ExperienceRange{Min: 0, Max: 0}
	}

	if m := rangePattern.FindStringSubmatch(s); m != nil {
		lo, errLo := strconv.Atoi(m[1])
		hi, errHi := strconv.Atoi(m[2])
		if errLo != nil || errHi != nil {
			return nil
		}
		return &ExperienceRange{Min: lo, Max: hi}
	}

	if m := openEndPattern.FindStringSubmatch(s); m != nil {
		lo, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}
		return &ExperienceRange{Min: lo, Unbounded: true}
	}

	if barePattern.MatchString(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		return &ExperienceRange{Min: n, Max: n}
	}

	return nil
}

package hittuning

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ParseValue converts the right-hand side of a FHiCL assignment into a Go
// value: []any for lists, bool, int, float64 or string.
func ParseValue(raw string) any {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return []any{}
		}
		parts := strings.Split(inner, ",")
		values := make([]any, len(parts))
		for i, p := range parts {
			values[i] = ParseValue(p)
		}
		return values
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}

	if strings.ContainsAny(s, ".eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	} else if i, err := strconv.Atoi(s); err == nil {
		return i
	}

	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// AllValues returns every value assigned to key in text, in file order.
// Trailing comments are dropped.
func AllValues(key string, text string) []any {
	re := regexp.MustCompile(regexp.QuoteMeta(key) + `\s*:\s*([^\n#]+)`)
	matches := re.FindAllStringSubmatch(text, -1)
	values := make([]any, 0, len(matches))
	for _, m := range matches {
		values = append(values, ParseValue(m[1]))
	}
	return values
}

// ensureList3 normalizes a parsed value to three entries: scalars are
// replicated, single-entry lists replicated, longer lists truncated and
// shorter ones padded with their last element.
func ensureList3(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return []any{v, v, v}
	}
	switch {
	case len(list) == 0:
		return nil
	case len(list) == 1:
		return []any{list[0], list[0], list[0]}
	case len(list) >= NPlanes:
		return list[:NPlanes]
	}
	out := append([]any{}, list...)
	for len(out) < NPlanes {
		out = append(out, list[len(list)-1])
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	}
	return 0, false
}

func lastValue(values []any) (any, bool) {
	if len(values) == 0 {
		return nil, false
	}
	return values[len(values)-1], true
}

func floatList3(values []any, def [NPlanes]float64) ([NPlanes]float64, error) {
	v, ok := lastValue(values)
	if !ok {
		return def, nil
	}
	list := ensureList3(v)
	if list == nil {
		return def, nil
	}
	var out [NPlanes]float64
	for i, x := range list {
		f, ok := toFloat(x)
		if !ok {
			return def, fmt.Errorf("value %v is not numeric", x)
		}
		out[i] = f
	}
	return out, nil
}

func intList3(values []any, def [NPlanes]int) ([NPlanes]int, error) {
	v, ok := lastValue(values)
	if !ok {
		return def, nil
	}
	list := ensureList3(v)
	if list == nil {
		return def, nil
	}
	var out [NPlanes]int
	for i, x := range list {
		n, ok := toInt(x)
		if !ok {
			return def, fmt.Errorf("value %v is not an integer", x)
		}
		out[i] = n
	}
	return out, nil
}

// ParseFCLText reconstructs the scanned parameters from a generated FCL.
// Each key may appear once per TPC producer; the last occurrence wins and
// missing keys keep their default.
func ParseFCLText(text string) (FCLParams, error) {
	params := DefaultParams()
	var err error

	for plane := 0; plane < NPlanes; plane++ {
		key := fmt.Sprintf("HitFinderToolVec.CandidateHitsPlane%d.RoiThreshold", plane)
		if v, ok := lastValue(AllValues(key, text)); ok {
			f, ok := toFloat(v)
			if !ok {
				return params, fmt.Errorf("%s: value %v is not numeric", key, v)
			}
			params.RoiThreshold[plane] = f
		}
	}

	floatKeys := []struct {
		key string
		dst *[NPlanes]float64
	}{
		{"HitFilterAlg.MinPulseHeight", &params.MinPulseHeight},
		{"HitFilterAlg.MinPulseSigma", &params.MinPulseSigma},
		{"LongPulseWidth", &params.LongPulseWidth},
		{"PulseHeightCuts", &params.PulseHeightCuts},
		{"PulseWidthCuts", &params.PulseWidthCuts},
		{"PulseRatioCuts", &params.PulseRatioCuts},
	}
	for _, fk := range floatKeys {
		*fk.dst, err = floatList3(AllValues(fk.key, text), *fk.dst)
		if err != nil {
			return params, fmt.Errorf("%s: %w", fk.key, err)
		}
	}

	params.LongMaxHits, err = intList3(AllValues("LongMaxHits", text), params.LongMaxHits)
	if err != nil {
		return params, fmt.Errorf("LongMaxHits: %w", err)
	}

	if v, ok := lastValue(AllValues("MaxMultiHit", text)); ok {
		n, ok := toInt(v)
		if !ok {
			return params, fmt.Errorf("MaxMultiHit: value %v is not an integer", v)
		}
		params.MaxMultiHit = n
	}
	if v, ok := lastValue(AllValues("Chi2NDF", text)); ok {
		f, ok := toFloat(v)
		if !ok {
			return params, fmt.Errorf("Chi2NDF: value %v is not numeric", v)
		}
		params.Chi2NDF = f
	}
	return params, nil
}

func ParseFCL(path string) (FCLParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultParams(), &ErrOpenFile{Filename: path, Err: err}
	}
	return ParseFCLText(string(data))
}

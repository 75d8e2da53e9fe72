// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package options

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Validate checks opts against schema and returns a normalized copy holding
// only int, float64, string and []string values. Nil values are treated as
// absent. Unknown keys are reported before any type or range violation.
func Validate(schema Schema, opts Options) (Options, error) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, ok := schema.Rule(k); !ok {
			return nil, &ValidationError{
				Mode:   schema.Mode,
				Option: k,
				Reason: fmt.Sprintf("unknown option %q (valid options: %s)", k, strings.Join(schema.Names(), ", ")),
			}
		}
	}

	normalized := make(Options, len(opts))
	for _, k := range keys {
		raw := opts[k]
		if raw == nil {
			continue
		}
		rule, _ := schema.Rule(k)
		v, err := rule.normalize(raw)
		if err != nil {
			return nil, &ValidationError{Mode: schema.Mode, Option: k, Reason: err.Error()}
		}
		normalized[k] = v
	}
	return normalized, nil
}

// Merge returns defaults overlaid with opts. Neither input is modified.
func Merge(defaults, opts Options) Options {
	merged := make(Options, len(defaults)+len(opts))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range opts {
		merged[k] = v
	}
	return merged
}

func (r Rule) violation() error {
	return fmt.Errorf("%s %s", r.Name, r.Constraint)
}

func (r Rule) normalize(raw any) (any, error) {
	switch r.Kind {
	case KindInt:
		n, ok := asInt(raw)
		if !ok || !r.inRange(float64(n)) {
			return nil, r.violation()
		}
		return n, nil
	case KindFloat:
		f, ok := asFloat(raw)
		if !ok || !r.inRange(f) {
			return nil, r.violation()
		}
		return f, nil
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, r.violation()
		}
		return s, nil
	case KindStrings:
		list, ok := asStrings(raw)
		if !ok {
			return nil, r.violation()
		}
		return list, nil
	default:
		return nil, fmt.Errorf("%s has unsupported kind %s", r.Name, r.Kind)
	}
}

func (r Rule) inRange(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		if v > math.MaxInt || v < math.MinInt {
			return 0, false
		}
		return int(v), true
	case uint:
		if uint64(v) > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float32:
		return integral(float64(v))
	case float64:
		return integral(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return asInt(n)
		}
		if f, err := v.Float64(); err == nil {
			return integral(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

// integral accepts floats without a fractional part, which is how JSON and
// YAML decoders hand over whole numbers.
func integral(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int(f), true
}

func asFloat(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		n, ok := asInt(raw)
		if !ok {
			return 0, false
		}
		f = float64(n)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

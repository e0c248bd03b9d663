// Package normalize maps the backend's differently-named question payloads
// onto domain.Question.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"Sahayak/internal/domain"
)

// Extractor pulls one canonical field out of a raw entry. ok is false when the
// entry carries no usable value for it.
type Extractor[T any] func(raw map[string]any) (T, bool)

// Field is an ordered fallback chain with a positional default.
type Field[T any] struct {
	Extractors []Extractor[T]
	Default    func(index int) T
}

// Resolve returns the first extractor hit, or the default for index.
func (f Field[T]) Resolve(raw map[string]any, index int) T {
	for _, extract := range f.Extractors {
		if v, ok := extract(raw); ok {
			return v
		}
	}
	return f.Default(index)
}

var (
	IDField = Field[string]{
		Extractors: []Extractor[string]{
			identifier("question_number"),
			identifier("questionId"),
			identifier("id"),
		},
		Default: func(i int) string { return fmt.Sprintf("q-%d", i) },
	}

	TextField = Field[string]{
		Extractors: []Extractor[string]{
			text("question_text"),
			text("questionText"),
			text("question"),
		},
		Default: func(i int) string { return fmt.Sprintf("Question %d", i+1) },
	}

	AnswerField = Field[string]{
		Extractors: []Extractor[string]{
			text("suggested_answer"),
			text("suggestedAnswer"),
			text("answer"),
		},
		Default: func(int) string { return "" },
	}

	PointsField = Field[int]{
		Extractors: []Extractor[int]{
			points("max_score"),
			points("points"),
			points("maxMarks"),
		},
		Default: func(int) int { return domain.DefaultPoints },
	}
)

// Normalize converts raw entries in order. It never fails; missing fields get
// their defaults and nil entries are treated as empty.
func Normalize(raw []map[string]any) []domain.Question {
	out := make([]domain.Question, 0, len(raw))
	for i, entry := range raw {
		if entry == nil {
			entry = map[string]any{}
		}
		out = append(out, domain.Question{
			ID:       IDField.Resolve(entry, i),
			Question: TextField.Resolve(entry, i),
			Answer:   AnswerField.Resolve(entry, i),
			Points:   PointsField.Resolve(entry, i),
		})
	}
	return out
}

// Entries narrows a decoded JSON array to its object elements. Non-object
// elements become empty entries so positions are kept.
func Entries(v any) ([]map[string]any, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, len(list))
	for i, item := range list {
		if m, ok := item.(map[string]any); ok {
			out[i] = m
		} else {
			out[i] = map[string]any{}
		}
	}
	return out, true
}

func text(key string) Extractor[string] {
	return func(raw map[string]any) (string, bool) {
		s, ok := raw[key].(string)
		if !ok || strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}
}

// identifier also accepts numbers, which some handlers emit for
// question_number.
func identifier(key string) Extractor[string] {
	return func(raw map[string]any) (string, bool) {
		switch v := raw[key].(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return "", false
			}
			return v, true
		case float64:
			if v == 0 {
				return "", false
			}
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case int:
			if v == 0 {
				return "", false
			}
			return strconv.Itoa(v), true
		case int64:
			if v == 0 {
				return "", false
			}
			return strconv.FormatInt(v, 10), true
		default:
			return "", false
		}
	}
}

// points accepts positive whole numbers, as JSON numbers or numeric strings.
// Zero counts as absent so the next key or the default applies.
func points(key string) Extractor[int] {
	return func(raw map[string]any) (int, bool) {
		var f float64
		switch v := raw[key].(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		case int64:
			f = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return 0, false
			}
			f = parsed
		default:
			return 0, false
		}
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	}
}

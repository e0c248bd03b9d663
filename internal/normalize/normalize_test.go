package normalize

import (
	"encoding/json"
	"reflect"
	"testing"

	"Sahayak/internal/domain"
)

func decode(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	entries, ok := Entries(v)
	if !ok {
		t.Fatalf("not a list: %s", raw)
	}
	return entries
}

func TestNormalizeNamingConventions(t *testing.T) {
	t.Parallel()

	want := []domain.Question{{ID: "7", Question: "What is 2+2?", Answer: "4", Points: 3}}

	tests := []struct {
		name string
		raw  string
	}{
		{name: "snake case", raw: `[{"question_number":"7","question_text":"What is 2+2?","suggested_answer":"4","max_score":3}]`},
		{name: "camel case", raw: `[{"questionId":"7","questionText":"What is 2+2?","suggestedAnswer":"4","points":3}]`},
		{name: "short names", raw: `[{"id":"7","question":"What is 2+2?","answer":"4","maxMarks":3}]`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize(decode(t, tt.raw))
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("got %+v, want %+v", got, want)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	got := Normalize(decode(t, `[{}, {"unrelated": true}, 42]`))
	want := []domain.Question{
		{ID: "q-0", Question: "Question 1", Answer: "", Points: 5},
		{ID: "q-1", Question: "Question 2", Answer: "", Points: 5},
		{ID: "q-2", Question: "Question 3", Answer: "", Points: 5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeFallbackOrder(t *testing.T) {
	t.Parallel()

	got := Normalize(decode(t, `[{
		"question_number": "", "questionId": "B", "id": "C",
		"question_text": "first", "question": "third",
		"answer": "only",
		"max_score": -1, "points": "4", "maxMarks": 9
	}]`))
	want := domain.Question{ID: "B", Question: "first", Answer: "only", Points: 4}
	if got[0] != want {
		t.Fatalf("got %+v, want %+v", got[0], want)
	}
}

func TestNormalizeNumericIdentifiersAndZeroValues(t *testing.T) {
	t.Parallel()

	got := Normalize(decode(t, `[
		{"question_number": 3, "question_text": "Q", "max_score": 7},
		{"question_number": 0, "id": 9, "max_score": 0, "points": 3},
		{"question_number": 0, "max_score": 0}
	]`))

	tests := []struct {
		id     string
		points int
	}{
		{id: "3", points: 7},
		{id: "9", points: 3},
		{id: "q-2", points: domain.DefaultPoints},
	}
	for i, tt := range tests {
		tt := tt
		if got[i].ID != tt.id || got[i].Points != tt.points {
			t.Fatalf("entry %d: got id=%q points=%d, want id=%q points=%d", i, got[i].ID, got[i].Points, tt.id, tt.points)
		}
	}
}

func TestNormalizeRejectsFractionalPoints(t *testing.T) {
	t.Parallel()

	got := Normalize(decode(t, `[{"max_score": 2.5, "points": "abc"}]`))
	if got[0].Points != domain.DefaultPoints {
		t.Fatalf("expected default points, got %d", got[0].Points)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	t.Parallel()

	raw := decode(t, `[{"questionId":"1","questionText":"A"},{"id":2}]`)
	first := Normalize(raw)
	second := Normalize(raw)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("normalize is not deterministic")
	}
}

func TestNormalizeNilAndEmpty(t *testing.T) {
	t.Parallel()

	if got := Normalize(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	got := Normalize([]map[string]any{nil})
	if got[0].ID != "q-0" {
		t.Fatalf("nil entry should get defaults, got %+v", got[0])
	}
}

func TestEntriesRejectsNonList(t *testing.T) {
	t.Parallel()

	if _, ok := Entries(map[string]any{}); ok {
		t.Fatal("object should not be accepted as a list")
	}
}

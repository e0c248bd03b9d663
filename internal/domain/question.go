package domain

// DefaultPoints is used when a question carries no usable score.
const DefaultPoints = 5

// Question is one normalized answer-key entry.
type Question struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Points   int    `json:"points"`
}

// TotalPoints sums the point values of an answer key.
func TotalPoints(questions []Question) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}

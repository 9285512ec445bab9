package questionnaire

// Answers maps a question ID to the value recorded for it.
type Answers map[string]string

// Get returns the value for id, or "" when unanswered.
func (a Answers) Get(id string) string {
	return a[id]
}

// Has reports whether id has a non-empty answer.
func (a Answers) Has(id string) bool {
	return a[id] != ""
}

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

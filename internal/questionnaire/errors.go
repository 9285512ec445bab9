package questionnaire

import "fmt"

// ValidationError is returned by Advance when a required question has no
// recorded answer. The engine state is unchanged; the caller re-prompts.
type ValidationError struct {
	QuestionID string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("answer required for question %q", e.QuestionID)
}

// OutOfRangeError is returned when there is no question at the requested
// position: an empty catalog or an exhausted track.
type OutOfRangeError struct {
	Track string
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s track: position %d out of range [0,%d)", e.Track, e.Index, e.Len)
}

package types

import "strings"

const (
	maxStudentLen  = 100
	maxQuestionLen = 2000
)

// ValidStudent reports whether a client-supplied student name is usable
// after trimming. Student identity is self-asserted and never verified;
// only its shape is checked here.
func ValidStudent(student string) error {
	trimmed := strings.TrimSpace(student)
	if trimmed == "" {
		return ErrEmptyStudent
	}
	if len(trimmed) > maxStudentLen {
		return ErrStudentTooLong
	}
	return nil
}

// ValidKind reports whether kind is one of the four pace signals.
func ValidKind(kind string) error {
	switch kind {
	case KindOnTrack, KindSlowDown, KindLost, KindSpeedUp:
		return nil
	default:
		return ErrInvalidKind
	}
}

// ValidQuestionText checks a question's free text after trimming.
func ValidQuestionText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyQuestion
	}
	if len(trimmed) > maxQuestionLen {
		return ErrQuestionTooLong
	}
	return nil
}

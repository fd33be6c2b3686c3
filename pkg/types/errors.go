package types

import "errors"

var (
	ErrEmptyStudent   = errors.New("student name must be non-empty")
	ErrStudentTooLong = errors.New("student name must be at most 100 characters")
	ErrInvalidKind    = errors.New("unknown feedback kind")
	ErrEmptyQuestion  = errors.New("question text must be non-empty")
	ErrQuestionTooLong = errors.New("question text must be at most 2000 characters")
)

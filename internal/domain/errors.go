package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no tracker is active for a session/student pair.
	ErrSessionNotFound = errors.New("assessment session not found")
	// ErrSessionFinalized is returned when a finalized session receives further input.
	ErrSessionFinalized = errors.New("assessment session already finalized")
	// ErrAlreadyAnswered is returned when the current question has already been scored.
	ErrAlreadyAnswered = errors.New("current question already answered")
	// ErrNotAnswered is returned when advancing past a question that has not been answered.
	ErrNotAnswered = errors.New("current question not answered yet")
	// ErrAnswerKindMismatch indicates the submitted answer shape does not fit the question kind.
	ErrAnswerKindMismatch = errors.New("answer does not match question kind")
	// ErrEmptyTranscript is a recoverable input error; the student should retry the same step.
	ErrEmptyTranscript = errors.New("empty transcript")
	// ErrNoSpeech is reported by a capture session that ended without any recognized speech.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrCapabilityUnavailable indicates speech recognition or audio capture is unsupported.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrPermissionDenied indicates the microphone permission was refused.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrRankingGateClosed is returned when ranking is requested before the cohort deadline.
	ErrRankingGateClosed = errors.New("ranking not available before the session deadline")
	// ErrStudentNotRanked indicates the student has no result in the session.
	ErrStudentNotRanked = errors.New("student has no result in session")
	// ErrQuestionSetNotFound indicates no questions exist for the requested unit and level.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrInvalidQuestion indicates a question record is missing kind-specific fields.
	ErrInvalidQuestion = errors.New("invalid question record")
	// ErrInvalidSubmission indicates a result submission without session or student.
	ErrInvalidSubmission = errors.New("invalid result submission")
	// ErrProgressNotFound is returned by stores when no progress was persisted.
	ErrProgressNotFound = errors.New("progress not found")
)

// Recoverable reports whether err asks the student to retry the same step.
func Recoverable(err error) bool {
	return errors.Is(err, ErrEmptyTranscript) || errors.Is(err, ErrNoSpeech)
}

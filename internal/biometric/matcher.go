package biometric

import (
	"context"
	"errors"
	"time"
)

// Result is the matcher's decision for one capture.
type Result struct {
	Matched     bool      `json:"matched"`
	Score       float64   `json:"score"`
	LivenessOk  bool      `json:"liveness_ok"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Record links a subject to their enrolled reference template, which is
// owned by the matcher and referenced here by opaque id only.
type Record struct {
	SubjectID   string
	TemplateRef string
	EnrolledAt  time.Time
}

// ErrUnavailable marks an infrastructure failure (timeout, malformed
// response) as opposed to a genuine mismatch. Callers must treat it as
// a reject, never as an implicit accept.
var ErrUnavailable = errors.New("biometric: matcher unavailable")

// Matcher is the external face/voice comparison collaborator. All signal
// processing (face recognition, voice recognition, phrase transcription)
// lives behind this contract.
type Matcher interface {
	// Verify compares captured media against the subject's enrolled
	// template and checks that the expected phrase was spoken live.
	Verify(ctx context.Context, subjectID, mediaRef, expectedPhrase string) (Result, error)

	// Enroll registers reference media for a subject and returns the
	// opaque template reference to keep alongside the subject record.
	Enroll(ctx context.Context, subjectID, mediaRef string) (templateRef string, err error)
}

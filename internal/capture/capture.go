package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"speaking-assessment-service/internal/domain"
)

// RecognitionEvents receives the asynchronous outcome of speech recognition.
// Implementations must tolerate any order and any repetition of calls.
type RecognitionEvents interface {
	OnResult(transcript string)
	OnError(err error)
	OnEnd()
}

// SpeechRecognizer is a speech-to-text provider.
type SpeechRecognizer interface {
	Start(ctx context.Context, events RecognitionEvents) error
	Stop()
}

// Clip is a recorded audio take.
type Clip struct {
	Data     []byte
	MIMEType string
}

// AudioRecorder captures the student's voice alongside recognition.
type AudioRecorder interface {
	Start(ctx context.Context) error
	Stop() (Clip, error)
}

// Speaker is a text-to-speech provider.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Result is what a capture session produced. Err is set when no usable
// transcript was captured.
type Result struct {
	Transcript string
	Clip       *Clip
	Err        error
}

// Session runs one recognition attempt, with an optional parallel recording.
// The first of result, error, end or manual stop completes it; every later
// event is ignored. Completing stops both providers.
type Session struct {
	ID string

	recognizer SpeechRecognizer
	recorder   AudioRecorder
	log        *zap.Logger

	mu       sync.Mutex
	finished bool
	result   Result
	done     chan struct{}
}

// NewSession builds a capture session. recorder may be nil.
func NewSession(recognizer SpeechRecognizer, recorder AudioRecorder, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		ID:         id,
		recognizer: recognizer,
		recorder:   recorder,
		log:        log.With(zap.String("capture_id", id)),
		done:       make(chan struct{}),
	}
}

// Start starts recording and recognition. Provider failures are returned as
// capability errors without retry.
func (s *Session) Start(ctx context.Context) error {
	if s.recognizer == nil {
		return domain.ErrCapabilityUnavailable
	}
	if s.recorder != nil {
		if err := s.recorder.Start(ctx); err != nil {
			return capabilityError("audio capture", err)
		}
	}
	if err := s.recognizer.Start(ctx, s); err != nil {
		if s.recorder != nil {
			_, _ = s.recorder.Stop()
		}
		return capabilityError("speech recognition", err)
	}
	s.log.Debug("capture started")
	return nil
}

func (s *Session) OnResult(transcript string) {
	if strings.TrimSpace(transcript) == "" {
		s.complete(Result{Err: domain.ErrNoSpeech})
		return
	}
	s.complete(Result{Transcript: transcript})
}

func (s *Session) OnError(err error) {
	s.complete(Result{Err: err})
}

func (s *Session) OnEnd() {
	s.complete(Result{Err: domain.ErrNoSpeech})
}

// Stop is the manual stop path.
func (s *Session) Stop() {
	s.complete(Result{Err: domain.ErrNoSpeech})
}

// Done is closed once the session completed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the outcome; only meaningful after Done is closed.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Wait blocks until completion or ctx cancellation.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		return s.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (s *Session) complete(r Result) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()

	// stopping a provider may synchronously deliver more events; they hit
	// the finished flag above
	s.recognizer.Stop()
	if s.recorder != nil {
		clip, err := s.recorder.Stop()
		if err != nil {
			s.log.Warn("stop recorder", zap.Error(err))
		} else {
			r.Clip = &clip
		}
	}

	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
	close(s.done)
	s.log.Debug("capture completed", zap.Bool("has_transcript", r.Err == nil))
}

func capabilityError(what string, err error) error {
	if errors.Is(err, domain.ErrCapabilityUnavailable) || errors.Is(err, domain.ErrPermissionDenied) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s: %w: %v", what, domain.ErrCapabilityUnavailable, err)
}

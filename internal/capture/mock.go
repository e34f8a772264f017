package capture

import (
	"context"
	"sync"
)

// MockRecognizer is a scriptable SpeechRecognizer for tests.
type MockRecognizer struct {
	StartErr error
	// EndOnStop makes Stop deliver OnEnd, the way browser engines do.
	EndOnStop bool

	mu      sync.Mutex
	events  RecognitionEvents
	Started int
	Stopped int
}

func (m *MockRecognizer) Start(_ context.Context, events RecognitionEvents) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.events = events
	m.Started++
	return nil
}

func (m *MockRecognizer) Stop() {
	m.mu.Lock()
	m.Stopped++
	events, end := m.events, m.EndOnStop
	m.mu.Unlock()
	if end && events != nil {
		events.OnEnd()
	}
}

// Emit delivers a transcript.
func (m *MockRecognizer) Emit(transcript string) {
	if ev := m.target(); ev != nil {
		ev.OnResult(transcript)
	}
}

// Fail delivers an error.
func (m *MockRecognizer) Fail(err error) {
	if ev := m.target(); ev != nil {
		ev.OnError(err)
	}
}

// End delivers end of recognition.
func (m *MockRecognizer) End() {
	if ev := m.target(); ev != nil {
		ev.OnEnd()
	}
}

func (m *MockRecognizer) target() RecognitionEvents {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

// MockRecorder is an AudioRecorder returning a fixed clip.
type MockRecorder struct {
	StartErr error
	Clip     Clip

	mu      sync.Mutex
	Stopped int
}

func (m *MockRecorder) Start(context.Context) error {
	return m.StartErr
}

func (m *MockRecorder) Stop() (Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stopped++
	return m.Clip, nil
}

// MockSpeaker records spoken texts.
type MockSpeaker struct {
	mu     sync.Mutex
	Spoken []string
}

func (m *MockSpeaker) Speak(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Spoken = append(m.Spoken, text)
	return nil
}

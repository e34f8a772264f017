package capture

import (
	"context"

	"speaking-assessment-service/internal/domain"
)

// SpeakPrompt reads aloud what the student has to hear for q: the word for
// dictation and the target sentence for sentence recording.
func SpeakPrompt(ctx context.Context, speaker Speaker, q domain.Question) error {
	if speaker == nil {
		return nil
	}
	switch v := q.(type) {
	case domain.Dictation:
		return speaker.Speak(ctx, v.Answer)
	case domain.SentenceRecording:
		return speaker.Speak(ctx, v.Sentence)
	}
	return nil
}

package http

import (
	"encoding/json"
	"time"

	"speaking-assessment-service/internal/domain"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	OptionIndex *int   `json:"optionIndex,omitempty"`
	Text        string `json:"text,omitempty"`
	Transcript  string `json:"transcript,omitempty"`
}

type speechPayload struct {
	Transcript string `json:"transcript,omitempty"`
	Code       string `json:"code,omitempty"`
}

// audioPayload is one recorded chunk; Data travels base64 encoded.
type audioPayload struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable,omitempty"`
}

type joinedPayload struct {
	Progress    domain.GameProgress `json:"progress"`
	Question    *questionView       `json:"question,omitempty"`
	RemainingMs int64               `json:"remainingMs"`
}

type tickPayload struct {
	RemainingMs int64 `json:"remainingMs"`
}

type transcriptPayload struct {
	Transcript string                 `json:"transcript"`
	Coverage   *domain.SpeechCoverage `json:"coverage,omitempty"`
	Feedback   string                 `json:"feedback,omitempty"`
	ClipBytes  int                    `json:"clipBytes,omitempty"`
	MIMEType   string                 `json:"mimeType,omitempty"`
}

type speakPayload struct {
	Text string `json:"text"`
}

// questionView is what the client may see of a question; answers stay server-side.
type questionView struct {
	ID          string              `json:"id"`
	Kind        domain.QuestionKind `json:"kind"`
	Prompt      string              `json:"prompt"`
	Category    string              `json:"category,omitempty"`
	Options     []string            `json:"options,omitempty"`
	Sentence    string              `json:"sentence,omitempty"`
	Translation string              `json:"translation,omitempty"`
	Word        string              `json:"word,omitempty"`
	Index       int                 `json:"index"`
	Total       int                 `json:"total"`
}

func viewOf(q domain.Question, progress domain.GameProgress) *questionView {
	if q == nil {
		return nil
	}
	b := q.Base()
	view := &questionView{
		ID:       b.ID,
		Kind:     q.Kind(),
		Prompt:   b.Prompt,
		Category: b.Category,
		Index:    progress.CurrentQuestion,
		Total:    progress.TotalQuestions,
	}
	switch v := q.(type) {
	case domain.MultipleChoice:
		view.Options = v.Options
	case domain.SentenceRecording:
		view.Options = v.Options
		view.Sentence, view.Translation, view.Word = v.Sentence, v.Translation, v.Word
	}
	return view
}

// answerFor shapes the payload into the answer variant the question expects.
func answerFor(q domain.Question, p answerPayload, lastTranscript string) (domain.Answer, error) {
	index := func() (int, error) {
		if p.OptionIndex == nil {
			return 0, domain.ErrAnswerKindMismatch
		}
		return *p.OptionIndex, nil
	}

	switch q.(type) {
	case domain.MultipleChoice:
		idx, err := index()
		if err != nil {
			return nil, err
		}
		return domain.ChoiceAnswer{Index: idx}, nil
	case domain.Dictation:
		return domain.TextAnswer{Text: p.Text}, nil
	case domain.Recording:
		return domain.SpokenAnswer{Transcript: p.Transcript}, nil
	case domain.SentenceRecording:
		idx, err := index()
		if err != nil {
			return nil, err
		}
		transcript := p.Transcript
		if transcript == "" {
			transcript = lastTranscript
		}
		return domain.SentenceAnswer{Transcript: transcript, Index: idx}, nil
	}
	return nil, domain.ErrAnswerKindMismatch
}

func ms(d time.Duration) int64 {
	return d.Milliseconds()
}

package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"speaking-assessment-service/internal/domain"
)

const bankYAML = `
units:
  unit-1:
    beginner:
      - type: multiple-choice
        id: q1
        prompt: Which word means a young cat?
        options: [puppy, kitten, calf]
        correct: 1
      - type: dictation
        id: q2
        prompt: Type the word you hear.
        answer: apple
      - type: sentence-recording
        id: q3
        prompt: Read the sentence.
        sentence: The dog has a big red ball
        word: big
        options: [small, large]
        correct: 1
`

func TestFileQuestionLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	if err := os.WriteFile(path, []byte(bankYAML), 0o600); err != nil {
		t.Fatalf("write bank: %v", err)
	}

	loader, err := NewFileQuestionLoader(path)
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	set, err := loader.LoadQuestions(context.Background(), "unit-1", "beginner")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(set.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(set.Questions))
	}
	mc, ok := set.Questions[0].(domain.MultipleChoice)
	if !ok || mc.CorrectIndex != 1 {
		t.Fatalf("unexpected first question %+v", set.Questions[0])
	}
	sr, ok := set.Questions[2].(domain.SentenceRecording)
	if !ok || sr.Word != "big" {
		t.Fatalf("unexpected sentence question %+v", set.Questions[2])
	}
}

func TestParseBankRejectsInvalidRecords(t *testing.T) {
	_, err := ParseBank([]byte(`
units:
  unit-1:
    beginner:
      - type: multiple-choice
        id: q1
        options: [a, b]
        correct: 5
`))
	if !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question, got %v", err)
	}
}

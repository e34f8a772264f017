package domain

import (
	"encoding/json"
	"fmt"
)

// QuestionKind discriminates the question variants.
type QuestionKind string

const (
	KindMultipleChoice    QuestionKind = "multiple-choice"
	KindDictation         QuestionKind = "dictation"
	KindRecording         QuestionKind = "recording"
	KindSentenceRecording QuestionKind = "sentence-recording"
)

// QuestionBase holds the fields shared by every question kind.
type QuestionBase struct {
	ID          string
	Prompt      string
	Explanation string
	Category    string
}

// Base returns the shared fields.
func (b QuestionBase) Base() QuestionBase { return b }

// Question is a sealed sum type; the only implementations live in this file.
type Question interface {
	Base() QuestionBase
	Kind() QuestionKind
	isQuestion()
}

// MultipleChoice is answered by picking one option index.
type MultipleChoice struct {
	QuestionBase
	Options      []string
	CorrectIndex int
}

// Dictation is answered by typing the word that was spoken to the student.
type Dictation struct {
	QuestionBase
	Answer string
}

// Recording is answered by speaking; the transcript is fuzzy-matched.
type Recording struct {
	QuestionBase
	Answer string
}

// SentenceRecording asks the student to read Sentence aloud and then pick
// what Word means in that sentence. Only the option choice is scored.
type SentenceRecording struct {
	QuestionBase
	Sentence     string
	Translation  string
	Word         string
	Options      []string
	CorrectIndex int
}

func (MultipleChoice) Kind() QuestionKind    { return KindMultipleChoice }
func (Dictation) Kind() QuestionKind         { return KindDictation }
func (Recording) Kind() QuestionKind         { return KindRecording }
func (SentenceRecording) Kind() QuestionKind { return KindSentenceRecording }

func (MultipleChoice) isQuestion()    {}
func (Dictation) isQuestion()         {}
func (Recording) isQuestion()         {}
func (SentenceRecording) isQuestion() {}

// QuestionRecord is the flat wire form used by question bank files, Postgres
// JSONB and caches. Type selects which of the optional fields are required.
type QuestionRecord struct {
	Type        QuestionKind `json:"type" yaml:"type"`
	ID          string       `json:"id" yaml:"id"`
	Prompt      string       `json:"prompt" yaml:"prompt"`
	Explanation string       `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Category    string       `json:"category,omitempty" yaml:"category,omitempty"`
	Options     []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Correct     *int         `json:"correct,omitempty" yaml:"correct,omitempty"`
	Answer      string       `json:"answer,omitempty" yaml:"answer,omitempty"`
	Sentence    string       `json:"sentence,omitempty" yaml:"sentence,omitempty"`
	Translation string       `json:"translation,omitempty" yaml:"translation,omitempty"`
	Word        string       `json:"word,omitempty" yaml:"word,omitempty"`
}

// Question converts the record into its typed variant.
func (r QuestionRecord) Question() (Question, error) {
	base := QuestionBase{ID: r.ID, Prompt: r.Prompt, Explanation: r.Explanation, Category: r.Category}
	if r.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}

	switch r.Type {
	case KindMultipleChoice:
		idx, err := r.correctIndex()
		if err != nil {
			return nil, err
		}
		return MultipleChoice{QuestionBase: base, Options: r.Options, CorrectIndex: idx}, nil
	case KindDictation, KindRecording:
		if r.Answer == "" {
			return nil, fmt.Errorf("%w: %s %q has no answer", ErrInvalidQuestion, r.Type, r.ID)
		}
		if r.Type == KindDictation {
			return Dictation{QuestionBase: base, Answer: r.Answer}, nil
		}
		return Recording{QuestionBase: base, Answer: r.Answer}, nil
	case KindSentenceRecording:
		if r.Sentence == "" {
			return nil, fmt.Errorf("%w: sentence-recording %q has no sentence", ErrInvalidQuestion, r.ID)
		}
		idx, err := r.correctIndex()
		if err != nil {
			return nil, err
		}
		return SentenceRecording{
			QuestionBase: base,
			Sentence:     r.Sentence,
			Translation:  r.Translation,
			Word:         r.Word,
			Options:      r.Options,
			CorrectIndex: idx,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, r.Type)
	}
}

func (r QuestionRecord) correctIndex() (int, error) {
	if len(r.Options) == 0 {
		return 0, fmt.Errorf("%w: %s %q has no options", ErrInvalidQuestion, r.Type, r.ID)
	}
	if r.Correct == nil || *r.Correct < 0 || *r.Correct >= len(r.Options) {
		return 0, fmt.Errorf("%w: %s %q correct index out of range", ErrInvalidQuestion, r.Type, r.ID)
	}
	return *r.Correct, nil
}

// RecordOf flattens a typed question back into its wire form.
func RecordOf(q Question) QuestionRecord {
	b := q.Base()
	rec := QuestionRecord{
		Type:        q.Kind(),
		ID:          b.ID,
		Prompt:      b.Prompt,
		Explanation: b.Explanation,
		Category:    b.Category,
	}
	switch v := q.(type) {
	case MultipleChoice:
		idx := v.CorrectIndex
		rec.Options, rec.Correct = v.Options, &idx
	case Dictation:
		rec.Answer = v.Answer
	case Recording:
		rec.Answer = v.Answer
	case SentenceRecording:
		idx := v.CorrectIndex
		rec.Options, rec.Correct = v.Options, &idx
		rec.Sentence, rec.Translation, rec.Word = v.Sentence, v.Translation, v.Word
	}
	return rec
}

// QuestionSet is the ordered question list for one unit and level.
type QuestionSet struct {
	Unit      string
	Level     string
	Questions []Question
}

type questionSetWire struct {
	Unit      string           `json:"unit" yaml:"unit"`
	Level     string           `json:"level" yaml:"level"`
	Questions []QuestionRecord `json:"questions" yaml:"questions"`
}

// MarshalJSON encodes the set through flat records.
func (s QuestionSet) MarshalJSON() ([]byte, error) {
	w := questionSetWire{Unit: s.Unit, Level: s.Level, Questions: make([]QuestionRecord, 0, len(s.Questions))}
	for _, q := range s.Questions {
		w.Questions = append(w.Questions, RecordOf(q))
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes and validates every record.
func (s *QuestionSet) UnmarshalJSON(data []byte) error {
	var w questionSetWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	set, err := BuildQuestionSet(w.Unit, w.Level, w.Questions)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// BuildQuestionSet converts records into a validated set.
func BuildQuestionSet(unit, level string, records []QuestionRecord) (QuestionSet, error) {
	set := QuestionSet{Unit: unit, Level: level, Questions: make([]Question, 0, len(records))}
	for _, rec := range records {
		q, err := rec.Question()
		if err != nil {
			return QuestionSet{}, err
		}
		set.Questions = append(set.Questions, q)
	}
	return set, nil
}

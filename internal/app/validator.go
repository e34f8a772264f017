package app

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"speaking-assessment-service/internal/domain"
)

// DefaultCoverageRatio is the share of sentence tokens a reading must cover.
const DefaultCoverageRatio = 0.7

// Validator decides correctness per question kind.
type Validator struct {
	CoverageRatio float64
}

func NewValidator() *Validator {
	return &Validator{CoverageRatio: DefaultCoverageRatio}
}

// Validate checks answer against question. An empty transcript is returned as
// domain.ErrEmptyTranscript and must not be scored.
func (v *Validator) Validate(q domain.Question, answer domain.Answer) (domain.Verdict, error) {
	switch question := q.(type) {
	case domain.MultipleChoice:
		a, ok := answer.(domain.ChoiceAnswer)
		if !ok {
			return domain.Verdict{}, mismatch(q, answer)
		}
		return domain.Verdict{Correct: a.Index == question.CorrectIndex}, nil

	case domain.Dictation:
		a, ok := answer.(domain.TextAnswer)
		if !ok {
			return domain.Verdict{}, mismatch(q, answer)
		}
		got := strings.ToLower(strings.TrimSpace(a.Text))
		want := strings.ToLower(strings.TrimSpace(question.Answer))
		return domain.Verdict{Correct: got == want}, nil

	case domain.Recording:
		a, ok := answer.(domain.SpokenAnswer)
		if !ok {
			return domain.Verdict{}, mismatch(q, answer)
		}
		if Normalize(a.Transcript) == "" {
			return domain.Verdict{}, domain.ErrEmptyTranscript
		}
		return domain.Verdict{Correct: TranscriptMatches(a.Transcript, question.Answer)}, nil

	case domain.SentenceRecording:
		a, ok := answer.(domain.SentenceAnswer)
		if !ok {
			return domain.Verdict{}, mismatch(q, answer)
		}
		if Normalize(a.Transcript) == "" {
			return domain.Verdict{}, domain.ErrEmptyTranscript
		}
		coverage := v.Coverage(question.Sentence, a.Transcript)
		return domain.Verdict{
			Correct:  a.Index == question.CorrectIndex,
			Coverage: &coverage,
			Feedback: CoverageFeedback(coverage),
		}, nil
	}
	return domain.Verdict{}, mismatch(q, answer)
}

// Normalize lower-cases s, drops punctuation and collapses whitespace.
func Normalize(s string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(stripped), " ")
}

// TranscriptMatches applies the three tolerance tiers for recognizer output:
// exact match, a shared token, or containment either way.
func TranscriptMatches(transcript, answer string) bool {
	got, want := Normalize(transcript), Normalize(answer)
	if got == "" || want == "" {
		return false
	}
	if got == want {
		return true
	}

	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(want) {
		tokens[tok] = struct{}{}
	}
	for _, tok := range strings.Fields(got) {
		if _, ok := tokens[tok]; ok {
			return true
		}
	}

	return strings.Contains(got, want) || strings.Contains(want, got)
}

// Coverage counts sentence tokens matched by some transcript token, where a
// match is containment in either direction.
func (v *Validator) Coverage(sentence, transcript string) domain.SpeechCoverage {
	target := strings.Fields(Normalize(sentence))
	spoken := strings.Fields(Normalize(transcript))

	matched := 0
	for _, t := range target {
		for _, s := range spoken {
			if strings.Contains(s, t) || strings.Contains(t, s) {
				matched++
				break
			}
		}
	}

	ratio := v.CoverageRatio
	if ratio <= 0 {
		ratio = DefaultCoverageRatio
	}
	required := int(math.Ceil(ratio * float64(len(target))))
	if required < 1 {
		required = 1
	}
	return domain.SpeechCoverage{
		Matched:  matched,
		Required: required,
		Total:    len(target),
		Passed:   matched >= required,
	}
}

// CoverageFeedback phrases encouragement for a sentence reading.
func CoverageFeedback(c domain.SpeechCoverage) string {
	if c.Passed {
		return fmt.Sprintf("Great reading! %d of %d words recognized.", c.Matched, c.Total)
	}
	return fmt.Sprintf("Keep practicing, %d of %d words recognized. Try reading it once more.", c.Matched, c.Total)
}

func mismatch(q domain.Question, answer domain.Answer) error {
	return fmt.Errorf("%w: %s question got %T", domain.ErrAnswerKindMismatch, q.Kind(), answer)
}

package domain

import (
	"fmt"
	"math"
	"time"
)

// Selection picks the question list and persistence namespace for a session.
type Selection struct {
	SessionID string `json:"sessionId"`
	Unit      string `json:"unit"`
	Level     string `json:"level"`
}

// Answer is a sealed sum type over submitted answer shapes.
type Answer interface {
	isAnswer()
}

// ChoiceAnswer selects an option by zero-based index.
type ChoiceAnswer struct {
	Index int
}

// TextAnswer is a typed answer for dictation.
type TextAnswer struct {
	Text string
}

// SpokenAnswer is a speech-to-text transcript for recording questions.
type SpokenAnswer struct {
	Transcript string
}

// SentenceAnswer carries both the read-aloud transcript and the meaning choice.
type SentenceAnswer struct {
	Transcript string
	Index      int
}

func (ChoiceAnswer) isAnswer()   {}
func (TextAnswer) isAnswer()     {}
func (SpokenAnswer) isAnswer()   {}
func (SentenceAnswer) isAnswer() {}

// SpeechCoverage is the feedback-only outcome of reading a sentence aloud.
type SpeechCoverage struct {
	Matched  int  `json:"matched"`
	Required int  `json:"required"`
	Total    int  `json:"total"`
	Passed   bool `json:"passed"`
}

// Verdict is the validator outcome for one submitted answer. Only Correct
// feeds scoring.
type Verdict struct {
	Correct  bool            `json:"correct"`
	Coverage *SpeechCoverage `json:"coverage,omitempty"`
	Feedback string          `json:"feedback,omitempty"`
}

// GameProgress is the mutable state of one student's running session.
type GameProgress struct {
	SessionID         string    `json:"sessionId"`
	Unit              string    `json:"unit"`
	Level             string    `json:"level"`
	StudentName       string    `json:"studentName"`
	CurrentQuestion   int       `json:"currentQuestion"`
	TotalQuestions    int       `json:"totalQuestions"`
	Score             int       `json:"score"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	CorrectAnswers    int       `json:"correctAnswers"`
	StartTime         time.Time `json:"startTime"`
	LastActivityTime  time.Time `json:"lastActivityTime"`
	Finished          bool      `json:"finished"`
	FinishedAt        time.Time `json:"finishedAt,omitempty"`
	Bonus             int       `json:"bonus"`
}

// Validate checks the aggregate invariants.
func (p GameProgress) Validate() error {
	switch {
	case p.QuestionsAnswered > p.TotalQuestions:
		return fmt.Errorf("answered %d exceeds total %d", p.QuestionsAnswered, p.TotalQuestions)
	case p.CorrectAnswers > p.QuestionsAnswered:
		return fmt.Errorf("correct %d exceeds answered %d", p.CorrectAnswers, p.QuestionsAnswered)
	case p.Score < 0:
		return fmt.Errorf("negative score %d", p.Score)
	}
	return nil
}

// StudentResult is an immutable snapshot reported to the aggregator.
type StudentResult struct {
	StudentName       string    `json:"studentName"`
	Score             int       `json:"score"`
	ElapsedMs         int64     `json:"elapsedMs"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	CorrectAnswers    int       `json:"correctAnswers"`
	TotalQuestions    int       `json:"totalQuestions"`
	Completion        float64   `json:"completion"`
	Final             bool      `json:"final"`
	SubmittedAt       time.Time `json:"submittedAt"`
}

// Elapsed returns the elapsed session time.
func (r StudentResult) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMs) * time.Millisecond
}

// Supersedes reports whether r may replace prev for the same student. A final
// result is never replaced by an intermediate one.
func (r StudentResult) Supersedes(prev StudentResult) bool {
	return r.Final || !prev.Final
}

// ResultFromProgress snapshots progress at now. The score includes the bonus
// once the progress is finished.
func ResultFromProgress(p GameProgress, now time.Time) StudentResult {
	completion := 0.0
	if p.TotalQuestions > 0 {
		completion = math.Round(float64(p.QuestionsAnswered)*10000/float64(p.TotalQuestions)) / 100
	}
	return StudentResult{
		StudentName:       p.StudentName,
		Score:             p.Score + p.Bonus,
		ElapsedMs:         now.Sub(p.StartTime).Milliseconds(),
		QuestionsAnswered: p.QuestionsAnswered,
		CorrectAnswers:    p.CorrectAnswers,
		TotalQuestions:    p.TotalQuestions,
		Completion:        completion,
		Final:             p.Finished,
		SubmittedAt:       now,
	}
}

// ResultSubmission is the payload sent to the results aggregator.
type ResultSubmission struct {
	SessionID string        `json:"sessionId"`
	Result    StudentResult `json:"studentResult"`
}

// RankingSnapshot is computed once per student after the cohort deadline.
type RankingSnapshot struct {
	Rank       int             `json:"rank"`
	Total      int             `json:"total"`
	Results    []StudentResult `json:"results"`
	ComputedAt time.Time       `json:"computedAt"`
}

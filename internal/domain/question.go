package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

const (
	// QuestionsPerChunk is the number of rows one completion must yield.
	QuestionsPerChunk = 5
	// QuestionTypeQCM is the only supported question kind.
	QuestionTypeQCM = "QCM"
	// KeywordsPerQuestion is the number of keywords each row carries.
	KeywordsPerQuestion = 3
	MinChoices          = 2
	MaxChoices          = 4
)

// ChoiceLetters are the allowed choice keys, in display order.
var ChoiceLetters = []string{"A", "B", "C", "D"}

// IsChoiceLetter reports whether s is one of ChoiceLetters.
func IsChoiceLetter(s string) bool {
	return slices.Contains(ChoiceLetters, s)
}

// SourceDocument is one markdown file handed to the pipeline.
type SourceDocument struct {
	ID   string // path relative to the ingested folder
	Path string
	Text string
}

// ContentChunk is a slice of a document eligible for one generation request.
type ContentChunk struct {
	SourceID           string
	Index              int
	Heading            string
	Text               string
	MinLengthSatisfied bool
}

// ID identifies the chunk within a run.
func (c ContentChunk) ID() string {
	return fmt.Sprintf("%s#%d", c.SourceID, c.Index)
}

// RawCompletion is the unparsed model reply for one chunk.
type RawCompletion struct {
	ChunkID string
	Text    string
}

// CandidateQuestion is one parsed row, not yet validated as part of a batch.
type CandidateQuestion struct {
	Subject      string
	Keywords     []string
	LocalID      string
	QuestionText string
	Kind         string
	Choices      map[string]string
	Answers      []string
	Line         int
}

// Question is the persisted record.
type Question struct {
	ID                int64
	Subject           string
	QuestionText      string
	Choices           map[string]string
	Answers           []string
	SourceKeywords    []string
	CanonicalKeywords []string
	SourceFile        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewQuestion builds a Question from a validated candidate. Canonical
// keywords start out equal to the source keywords until normalization runs.
func NewQuestion(c CandidateQuestion, sourceFile string) *Question {
	now := time.Now()
	choices := make(map[string]string, len(c.Choices))
	for k, v := range c.Choices {
		choices[k] = v
	}
	return &Question{
		Subject:           c.Subject,
		QuestionText:      c.QuestionText,
		Choices:           choices,
		Answers:           append([]string(nil), c.Answers...),
		SourceKeywords:    append([]string(nil), c.Keywords...),
		CanonicalKeywords: append([]string(nil), c.Keywords...),
		SourceFile:        sourceFile,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Validate checks the persisted-question invariants.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Subject) == "" {
		return NewInvalidInputError("subject is required")
	}
	if strings.TrimSpace(q.QuestionText) == "" {
		return NewInvalidInputError("question text is required")
	}
	if len(q.Choices) < MinChoices || len(q.Choices) > MaxChoices {
		return NewInvalidInputError(fmt.Sprintf("question must have %d to %d choices, got %d", MinChoices, MaxChoices, len(q.Choices)))
	}
	for k, v := range q.Choices {
		if !IsChoiceLetter(k) {
			return NewInvalidInputError(fmt.Sprintf("choice key %q is not one of %s", k, strings.Join(ChoiceLetters, ", ")))
		}
		if strings.TrimSpace(v) == "" {
			return NewInvalidInputError(fmt.Sprintf("choice %s is empty", k))
		}
	}
	if len(q.Answers) == 0 {
		return NewInvalidInputError("at least one answer is required")
	}
	for _, a := range q.Answers {
		if _, ok := q.Choices[a]; !ok {
			return NewInvalidInputError(fmt.Sprintf("answer %q is not a choice", a))
		}
	}
	return nil
}

// AuthoritativeAnswer is the letter used for grading: the first listed answer.
func (q *Question) AuthoritativeAnswer() string {
	if len(q.Answers) == 0 {
		return ""
	}
	return q.Answers[0]
}

// IsCorrect grades a selected letter against the authoritative answer.
func (q *Question) IsCorrect(selected string) bool {
	answer := q.AuthoritativeAnswer()
	return answer != "" && strings.EqualFold(strings.TrimSpace(selected), answer)
}

// ChoiceKeys returns the choice letters in order.
func (q *Question) ChoiceKeys() []string {
	keys := make([]string, 0, len(q.Choices))
	for k := range q.Choices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// QuestionFilter narrows read queries.
type QuestionFilter struct {
	Subject  string
	Keywords []string
}

// Stats aggregates the stored question bank.
type Stats struct {
	TotalQuestions      int
	TotalSubjects       int
	TotalKeywords       int
	QuestionsPerSubject map[string]int
	LastGeneratedAt     *time.Time
}

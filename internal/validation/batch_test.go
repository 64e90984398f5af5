package validation

import (
	"fmt"
	"testing"

	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id, text string, answers ...string) domain.CandidateQuestion {
	if len(answers) == 0 {
		answers = []string{"A"}
	}
	return domain.CandidateQuestion{
		Subject:      "Cloud",
		Keywords:     []string{"aws", "service", "cloud"},
		LocalID:      id,
		QuestionText: text,
		Kind:         domain.QuestionTypeQCM,
		Choices:      map[string]string{"A": "x", "B": "y", "C": "z"},
		Answers:      answers,
	}
}

func fullBatch() []domain.CandidateQuestion {
	var out []domain.CandidateQuestion
	for i := 5; i >= 1; i-- {
		out = append(out, candidate(fmt.Sprintf("Q%d", i), fmt.Sprintf("Question %d ?", i)))
	}
	return out
}

func TestValidate_CompleteBatch(t *testing.T) {
	res, err := NewBatchValidator(nil).Validate(fullBatch(), nil)

	require.NoError(t, err)
	require.Len(t, res.Questions, 5)
	for i, q := range res.Questions {
		assert.Equal(t, fmt.Sprintf("Q%d", i+1), q.LocalID, "questions are ordered by id")
	}
	assert.Empty(t, res.Dropped)
}

func TestValidate_IncompleteBatch(t *testing.T) {
	batch := fullBatch()[:3] // Q5, Q4, Q3

	res, err := NewBatchValidator(nil).Validate(batch, nil)

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrIncomplete))
	assert.Len(t, res.Questions, 3, "the batch is not padded")
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, []string{"Q1", "Q2"}, domainErr.Context["missing_ids"])
}

func TestValidate_DuplicateQuestionTextDropsLater(t *testing.T) {
	batch := fullBatch()
	batch[1].QuestionText = "  question 5   ?" // same as Q5 modulo case and spaces

	res, err := NewBatchValidator(nil).Validate(batch, nil)

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrIncomplete))
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, domain.ErrDuplicateQuestion, res.Dropped[0].Code)
	assert.Equal(t, "Q4", res.Dropped[0].Context["local_id"])
	for _, q := range res.Questions {
		assert.NotEqual(t, "Q4", q.LocalID)
	}
}

func TestValidate_DuplicateIDFailsBatch(t *testing.T) {
	batch := fullBatch()
	batch = append(batch, candidate("Q3", "Une autre question ?"))

	res, err := NewBatchValidator(nil).Validate(batch, nil)

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrDuplicateID))
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, domain.ErrDuplicateID, res.Dropped[0].Code)
}

func TestValidate_ParserDuplicateIDFailsBatch(t *testing.T) {
	// the parser already removed the second Q3 row
	rowErrors := []*domain.DomainError{
		domain.NewRowError(domain.ErrDuplicateID, 4, "id Q3 already used on line 3").WithContext("local_id", "Q3"),
		domain.NewRowError(domain.ErrMalformedKeywords, 7, "keywords"),
	}

	res, err := NewBatchValidator(nil).Validate(fullBatch(), rowErrors)

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrDuplicateID))
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, []string{"Q3"}, domainErr.Context["duplicate_ids"])
	assert.Len(t, res.Questions, 5)
}

func TestValidate_OtherRowErrorsDoNotFailBatch(t *testing.T) {
	rowErrors := []*domain.DomainError{
		domain.NewRowError(domain.ErrInvalidID, 6, "id Q6 must be Q1 to Q5"),
	}

	_, err := NewBatchValidator(nil).Validate(fullBatch(), rowErrors)

	assert.NoError(t, err)
}

func TestValidate_MultipleAnswersAccepted(t *testing.T) {
	batch := fullBatch()
	batch[0] = candidate("Q5", "Question 5 ?", "B", "A")

	res, err := NewBatchValidator(nil).Validate(batch, nil)

	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, domain.ErrMultipleAnswers, res.Diagnostics[0].Code)
	assert.Equal(t, []string{"B", "A"}, res.Questions[4].Answers)
}

func TestValidate_Empty(t *testing.T) {
	res, err := NewBatchValidator(nil).Validate(nil, nil)

	assert.True(t, domain.HasCode(err, domain.ErrIncomplete))
	assert.Empty(t, res.Questions)
}

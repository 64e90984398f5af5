package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Osyna/QuestionAir/internal/domain"
	"go.uber.org/zap"
)

// BatchResult is the outcome of validating one chunk's candidates.
type BatchResult struct {
	// Questions is ordered Q1..Q5 when the batch is complete.
	Questions []domain.CandidateQuestion
	// Dropped lists candidates removed at batch level.
	Dropped []*domain.DomainError
	// Diagnostics lists accepted oddities, such as several answer letters.
	Diagnostics []*domain.DomainError
}

// BatchValidator enforces the batch-level invariants on parsed candidates.
type BatchValidator struct {
	logger *zap.Logger
}

func NewBatchValidator(logger *zap.Logger) *BatchValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchValidator{logger: logger}
}

// Validate drops repeated question texts, then requires exactly the IDs
// Q1..Q5. rowErrors are the rows the parser rejected for the same reply: an
// ID used twice makes the whole batch ambiguous, so it fails with
// DUPLICATE_ID. A short batch returns the partial result together with an
// INCOMPLETE error; it is never padded.
func (v *BatchValidator) Validate(candidates []domain.CandidateQuestion, rowErrors []*domain.DomainError) (*BatchResult, error) {
	res := &BatchResult{}
	texts := make(map[string]string)
	ids := make(map[string]struct{})

	var duplicated []string
	for _, e := range rowErrors {
		if e.Code == domain.ErrDuplicateID {
			if id, ok := e.Context["local_id"].(string); ok {
				duplicated = append(duplicated, id)
			}
		}
	}

	for _, c := range candidates {
		key := questionKey(c.QuestionText)
		if first, dup := texts[key]; dup {
			res.Dropped = append(res.Dropped,
				domain.NewRowError(domain.ErrDuplicateQuestion, c.Line,
					fmt.Sprintf("question repeats %s", first)).
					WithContext("local_id", c.LocalID))
			continue
		}
		if _, dup := ids[c.LocalID]; dup {
			res.Dropped = append(res.Dropped,
				domain.NewRowError(domain.ErrDuplicateID, c.Line,
					fmt.Sprintf("id %s already used", c.LocalID)).
					WithContext("local_id", c.LocalID))
			duplicated = append(duplicated, c.LocalID)
			continue
		}
		texts[key] = c.LocalID
		ids[c.LocalID] = struct{}{}

		if len(c.Answers) > 1 {
			// accepted; grading uses the first listed letter
			res.Diagnostics = append(res.Diagnostics,
				domain.NewRowError(domain.ErrMultipleAnswers, c.Line,
					fmt.Sprintf("%d answers listed, %s is authoritative", len(c.Answers), c.Answers[0])).
					WithContext("local_id", c.LocalID))
		}
		res.Questions = append(res.Questions, c)
	}

	sort.SliceStable(res.Questions, func(i, j int) bool {
		return res.Questions[i].LocalID < res.Questions[j].LocalID
	})

	if len(duplicated) > 0 {
		sort.Strings(duplicated)
		v.logger.Debug("Batch reuses question ids", zap.Strings("ids", duplicated))
		return res, domain.NewError(domain.ErrDuplicateID,
			fmt.Sprintf("batch uses %s more than once", strings.Join(duplicated, ", ")), nil).
			WithContext("duplicate_ids", duplicated)
	}

	if missing := missingIDs(ids); len(missing) > 0 || len(res.Questions) != domain.QuestionsPerChunk {
		v.logger.Debug("Incomplete batch",
			zap.Int("valid", len(res.Questions)),
			zap.Strings("missing_ids", missing))
		return res, domain.NewIncompleteError(len(res.Questions)).
			WithContext("missing_ids", missing)
	}
	return res, nil
}

func missingIDs(ids map[string]struct{}) []string {
	var missing []string
	for i := 1; i <= domain.QuestionsPerChunk; i++ {
		id := fmt.Sprintf("Q%d", i)
		if _, ok := ids[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func questionKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

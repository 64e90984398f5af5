package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/Osyna/QuestionAir/internal/repository/models"
	"github.com/Osyna/QuestionAir/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Column lists are aliased in lower case because Oracle reports upper-case
// column names.
const questionColumns = `q.id "id",
		q.subject "subject",
		q.question_text "question_text",
		q.question_type "question_type",
		q.choices "choices",
		q.answers "answers",
		q.source_keywords "source_keywords",
		q.source_file "source_file",
		q.created_at "created_at",
		q.updated_at "updated_at"`

const (
	selectQuestionIDByKey = `SELECT id FROM questions WHERE subject = ? AND question_text = ?`

	insertQuestion = `INSERT INTO questions (
		subject, question_text, question_type, choices, answers,
		source_keywords, source_file, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	touchQuestion         = `UPDATE questions SET updated_at = ? WHERE id = ?`
	deleteQuestionKeyword = `DELETE FROM question_keywords WHERE question_id = ?`
	insertQuestionKeyword = `INSERT INTO question_keywords (question_id, keyword) VALUES (?, ?)`
)

// Unique-constraint violation markers of the supported drivers.
var uniqueViolationMarkers = []string{"UNIQUE constraint failed", "ORA-00001"}

// QuestionDatabaseAdapter implements domain.QuestionRepository using sqlx.
type QuestionDatabaseAdapter struct {
	db     *sqlx.DB
	tx     domain.TransactionManager
	logger *zap.Logger
	now    func() time.Time
}

// NewQuestionDatabaseAdapter creates a new instance of QuestionDatabaseAdapter
func NewQuestionDatabaseAdapter(db *sqlx.DB, logger *zap.Logger) *QuestionDatabaseAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionDatabaseAdapter{
		db:     db,
		tx:     NewTransactionManagerAdapter(db, logger),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upsert stores questions keyed by (subject, question_text). An existing
// question only gets its canonical keyword associations replaced.
func (a *QuestionDatabaseAdapter) Upsert(ctx context.Context, subject string, questions []*domain.Question) ([]int64, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, domain.NewInvalidInputError("subject cannot be empty")
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			var domainErr *domain.DomainError
			if errors.As(err, &domainErr) {
				domainErr.WithContext("index", i).WithContext("question_text", q.QuestionText)
			}
			return nil, err
		}
	}

	ids := make([]int64, len(questions))
	err := a.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, a.db)
		for i, q := range questions {
			id, err := a.upsertOne(ctx, exec, subject, q)
			if err != nil {
				return err
			}
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return nil, storageError("failed to upsert questions", err)
	}

	for i, q := range questions {
		q.ID = ids[i]
	}
	return ids, nil
}

func (a *QuestionDatabaseAdapter) upsertOne(ctx context.Context, exec DBTX, subject string, q *domain.Question) (int64, error) {
	now := a.now()

	id, found, err := a.findID(ctx, exec, subject, q.QuestionText)
	if err != nil {
		return 0, err
	}

	if !found {
		_, err = exec.ExecContext(ctx, exec.Rebind(insertQuestion),
			subject,
			q.QuestionText,
			domain.QuestionTypeQCM,
			models.ChoiceMap(q.Choices),
			models.StringSlice(q.Answers),
			models.StringSlice(q.SourceKeywords),
			util.StringToNullString(q.SourceFile),
			now,
			now,
		)
		switch {
		case err == nil:
		case isUniqueViolation(err):
			a.logger.Debug("Concurrent insert detected, re-selecting",
				zap.String("subject", subject),
				zap.String("question_text", q.QuestionText))
		default:
			return 0, fmt.Errorf("failed to insert question: %w", err)
		}

		id, found, err = a.findID(ctx, exec, subject, q.QuestionText)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, fmt.Errorf("question %q missing after insert", q.QuestionText)
		}
	} else {
		if _, err := exec.ExecContext(ctx, exec.Rebind(touchQuestion), now, id); err != nil {
			return 0, fmt.Errorf("failed to update question %d: %w", id, err)
		}
	}

	if err := a.replaceKeywords(ctx, exec, id, q.CanonicalKeywords); err != nil {
		return 0, err
	}
	return id, nil
}

func (a *QuestionDatabaseAdapter) findID(ctx context.Context, exec DBTX, subject, text string) (int64, bool, error) {
	var id int64
	err := exec.GetContext(ctx, &id, exec.Rebind(selectQuestionIDByKey), subject, text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to look up question: %w", err)
	}
	return id, true, nil
}

func (a *QuestionDatabaseAdapter) replaceKeywords(ctx context.Context, exec DBTX, questionID int64, keywords []string) error {
	if _, err := exec.ExecContext(ctx, exec.Rebind(deleteQuestionKeyword), questionID); err != nil {
		return fmt.Errorf("failed to clear keywords of question %d: %w", questionID, err)
	}
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		if _, err := exec.ExecContext(ctx, exec.Rebind(insertQuestionKeyword), questionID, kw); err != nil {
			return fmt.Errorf("failed to attach keyword %q to question %d: %w", kw, questionID, err)
		}
	}
	return nil
}

// CheckSchema selects every expected column from an empty result set.
func (a *QuestionDatabaseAdapter) CheckSchema(ctx context.Context) error {
	checks := []string{
		`SELECT ` + questionColumns + ` FROM questions q WHERE 1 = 0`,
		`SELECT question_id, keyword FROM question_keywords WHERE 1 = 0`,
	}
	for _, query := range checks {
		rows, err := a.db.QueryxContext(ctx, query)
		if err != nil {
			return domain.NewSchemaMismatchError("storage schema does not match the expected layout; run the migrations", err)
		}
		rows.Close()
	}
	return nil
}

// KeywordVocabulary implements domain.QuestionRepository
func (a *QuestionDatabaseAdapter) KeywordVocabulary(ctx context.Context, subject string) (map[string]int, error) {
	query := `SELECT k.keyword "keyword", COUNT(*) "frequency"
	FROM question_keywords k
	JOIN questions q ON q.id = k.question_id
	WHERE q.subject = ?
	GROUP BY k.keyword`

	var counts []models.KeywordCount
	exec := GetExecutor(ctx, a.db)
	if err := exec.SelectContext(ctx, &counts, exec.Rebind(query), subject); err != nil {
		return nil, storageError("failed to load keyword vocabulary", err)
	}
	vocab := make(map[string]int, len(counts))
	for _, c := range counts {
		vocab[c.Keyword] = c.Frequency
	}
	return vocab, nil
}

// Keywords implements domain.QuestionRepository
func (a *QuestionDatabaseAdapter) Keywords(ctx context.Context) ([]string, error) {
	keywords := []string{}
	if err := a.db.SelectContext(ctx, &keywords, `SELECT DISTINCT keyword FROM question_keywords ORDER BY keyword`); err != nil {
		return nil, storageError("failed to list keywords", err)
	}
	return keywords, nil
}

// Subjects implements domain.QuestionRepository
func (a *QuestionDatabaseAdapter) Subjects(ctx context.Context) ([]string, error) {
	subjects := []string{}
	if err := a.db.SelectContext(ctx, &subjects, `SELECT DISTINCT subject FROM questions ORDER BY subject`); err != nil {
		return nil, storageError("failed to list subjects", err)
	}
	return subjects, nil
}

// QuestionIDs returns the IDs of questions matching the filter. Keywords
// match any of the question's canonical keywords.
func (a *QuestionDatabaseAdapter) QuestionIDs(ctx context.Context, filter domain.QuestionFilter) ([]int64, error) {
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString(`SELECT DISTINCT q.id FROM questions q`)
	if len(filter.Keywords) > 0 {
		sb.WriteString(` JOIN question_keywords k ON k.question_id = q.id`)
	}
	sb.WriteString(` WHERE 1 = 1`)
	if filter.Subject != "" {
		sb.WriteString(` AND q.subject = ?`)
		args = append(args, filter.Subject)
	}
	if len(filter.Keywords) > 0 {
		sb.WriteString(` AND k.keyword IN (?)`)
		args = append(args, filter.Keywords)
	}
	sb.WriteString(` ORDER BY q.id`)

	query, args, err := sqlx.In(sb.String(), args...)
	if err != nil {
		return nil, storageError("failed to build question filter", err)
	}

	ids := []int64{}
	if err := a.db.SelectContext(ctx, &ids, a.db.Rebind(query), args...); err != nil {
		return nil, storageError("failed to list question IDs", err)
	}
	return ids, nil
}

// QuestionsByIDs loads questions with their canonical keywords, in the
// order of ids. Unknown IDs are skipped.
func (a *QuestionDatabaseAdapter) QuestionsByIDs(ctx context.Context, ids []int64) ([]*domain.Question, error) {
	if len(ids) == 0 {
		return []*domain.Question{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+questionColumns+` FROM questions q WHERE q.id IN (?)`, ids)
	if err != nil {
		return nil, storageError("failed to build question query", err)
	}
	var rows []models.Question
	if err := a.db.SelectContext(ctx, &rows, a.db.Rebind(query), args...); err != nil {
		return nil, storageError("failed to load questions", err)
	}

	query, args, err = sqlx.In(`SELECT question_id "question_id", keyword "keyword"
	FROM question_keywords WHERE question_id IN (?) ORDER BY question_id, keyword`, ids)
	if err != nil {
		return nil, storageError("failed to build keyword query", err)
	}
	var kwRows []models.QuestionKeyword
	if err := a.db.SelectContext(ctx, &kwRows, a.db.Rebind(query), args...); err != nil {
		return nil, storageError("failed to load question keywords", err)
	}
	keywords := make(map[int64][]string, len(rows))
	for _, k := range kwRows {
		keywords[k.QuestionID] = append(keywords[k.QuestionID], k.Keyword)
	}

	byID := make(map[int64]*domain.Question, len(rows))
	for i := range rows {
		byID[rows[i].ID] = toDomainQuestion(&rows[i], keywords[rows[i].ID])
	}
	out := make([]*domain.Question, 0, len(rows))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
			delete(byID, id)
		}
	}
	return out, nil
}

// QuestionByID implements domain.QuestionRepository
func (a *QuestionDatabaseAdapter) QuestionByID(ctx context.Context, id int64) (*domain.Question, error) {
	qs, err := a.QuestionsByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, domain.NewNotFoundError(fmt.Sprintf("question %d not found", id))
	}
	return qs[0], nil
}

// Stats implements domain.QuestionRepository
func (a *QuestionDatabaseAdapter) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{QuestionsPerSubject: make(map[string]int)}

	if err := a.db.GetContext(ctx, &stats.TotalQuestions, `SELECT COUNT(*) FROM questions`); err != nil {
		return nil, storageError("failed to count questions", err)
	}
	if err := a.db.GetContext(ctx, &stats.TotalKeywords, `SELECT COUNT(DISTINCT keyword) FROM question_keywords`); err != nil {
		return nil, storageError("failed to count keywords", err)
	}

	var perSubject []models.SubjectCount
	if err := a.db.SelectContext(ctx, &perSubject,
		`SELECT subject "subject", COUNT(*) "total" FROM questions GROUP BY subject`); err != nil {
		return nil, storageError("failed to count questions per subject", err)
	}
	for _, s := range perSubject {
		stats.QuestionsPerSubject[s.Subject] = s.Total
	}
	stats.TotalSubjects = len(perSubject)

	// The newest row's own column keeps its declared type, unlike MAX().
	var last time.Time
	err := a.db.GetContext(ctx, &last,
		`SELECT created_at FROM questions WHERE id = (SELECT MAX(id) FROM questions)`)
	switch {
	case err == nil:
		stats.LastGeneratedAt = &last
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, storageError("failed to read last generation time", err)
	}
	return stats, nil
}

func toDomainQuestion(m *models.Question, keywords []string) *domain.Question {
	if keywords == nil {
		keywords = []string{}
	}
	sort.Strings(keywords)
	return &domain.Question{
		ID:                m.ID,
		Subject:           m.Subject,
		QuestionText:      m.QuestionText,
		Choices:           map[string]string(m.Choices),
		Answers:           []string(m.Answers),
		SourceKeywords:    []string(m.SourceKeywords),
		CanonicalKeywords: keywords,
		SourceFile:        m.SourceFile.String,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	for _, marker := range uniqueViolationMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// storageError keeps domain errors as they are and wraps everything else as
// STORAGE_UNAVAILABLE.
func storageError(msg string, err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code != domain.ErrInternal {
		return err
	}
	return domain.NewStorageUnavailableError(msg, err)
}

var _ domain.QuestionRepository = (*QuestionDatabaseAdapter)(nil)

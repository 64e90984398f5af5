package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a new sqlx.DB instance and sqlmock for repository testing.
func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func sampleQuestion(text string, keywords ...string) *domain.Question {
	return &domain.Question{
		Subject:           "Réseaux IP",
		QuestionText:      text,
		Choices:           map[string]string{"A": "un", "B": "deux"},
		Answers:           []string{"B"},
		SourceKeywords:    keywords,
		CanonicalKeywords: keywords,
		SourceFile:        "cours/reseau.md",
	}
}

func TestUpsert_InsertsNewQuestion(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)
	q := sampleQuestion("Quel protocole ?", "ip", "tcp", "ip")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectQuestionIDByKey)).
		WithArgs("Réseaux IP", "Quel protocole ?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta(insertQuestion)).
		WithArgs("Réseaux IP", "Quel protocole ?", domain.QuestionTypeQCM,
			`{"A":"un","B":"deux"}`, `["B"]`, `["ip","tcp","ip"]`, "cours/reseau.md",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectQuestionIDByKey)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta(deleteQuestionKeyword)).WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(insertQuestionKeyword)).WithArgs(7, "ip").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertQuestionKeyword)).WithArgs(7, "tcp").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ids, err := repo.Upsert(context.Background(), "Réseaux IP", []*domain.Question{q})

	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
	assert.Equal(t, int64(7), q.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_RejectsInvalidQuestionBeforeWriting(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *domain.Question)
	}{
		{"answer outside choices", func(q *domain.Question) { q.Answers = []string{"C"} }},
		{"single choice", func(q *domain.Question) { q.Choices = map[string]string{"A": "un"} }},
		{"five choices", func(q *domain.Question) {
			q.Choices = map[string]string{"A": "1", "B": "2", "C": "3", "D": "4", "E": "5"}
		}},
		{"empty subject", func(q *domain.Question) { q.Subject = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupTestDB(t)
			repo := NewQuestionDatabaseAdapter(db, nil)
			valid := sampleQuestion("Quel protocole ?", "ip", "tcp", "udp")
			invalid := sampleQuestion("Quel port ?", "ip", "tcp", "udp")
			tt.mutate(invalid)

			ids, err := repo.Upsert(context.Background(), "Réseaux IP", []*domain.Question{valid, invalid})

			assert.Nil(t, ids)
			assert.True(t, domain.HasCode(err, domain.ErrInvalidInput))
			assert.False(t, domain.IsRetryable(err))
			var domainErr *domain.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, 1, domainErr.Context["index"])
			assert.NoError(t, mock.ExpectationsWereMet(), "nothing reaches the database")
		})
	}
}

func TestUpsert_ExistingQuestionOnlyReplacesKeywords(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectQuestionIDByKey)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(touchQuestion)).WithArgs(sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteQuestionKeyword)).WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(insertQuestionKeyword)).WithArgs(3, "k8s").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ids, err := repo.Upsert(context.Background(), "Réseaux IP", []*domain.Question{sampleQuestion("Q", "k8s")})

	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ConcurrentInsertIsReselected(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectQuestionIDByKey)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta(insertQuestion)).
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: questions.subject, questions.question_text (2067)"))
	mock.ExpectQuery(regexp.QuoteMeta(selectQuestionIDByKey)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(regexp.QuoteMeta(deleteQuestionKeyword)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ids, err := repo.Upsert(context.Background(), "Réseaux IP", []*domain.Question{sampleQuestion("Q")})

	require.NoError(t, err)
	assert.Equal(t, []int64{11}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DriverErrorIsStorageUnavailable(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectQuestionIDByKey)).
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err := repo.Upsert(context.Background(), "Réseaux IP", []*domain.Question{sampleQuestion("Q")})

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrStorageUnavailable))
	assert.True(t, domain.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_BeginFailure(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)
	mock.ExpectBegin().WillReturnError(errors.New("disk I/O error"))

	_, err := repo.Upsert(context.Background(), "Réseaux IP", []*domain.Question{sampleQuestion("Q")})

	assert.True(t, domain.HasCode(err, domain.ErrStorageUnavailable))
}

func TestUpsert_JoinsTransactionFromContext(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)
	tm := NewTransactionManagerAdapter(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectQuestionIDByKey)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(touchQuestion)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteQuestionKeyword)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectQuestionIDByKey)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta(touchQuestion)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteQuestionKeyword)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := repo.Upsert(ctx, "A", []*domain.Question{sampleQuestion("Q1")}); err != nil {
			return err
		}
		_, err := repo.Upsert(ctx, "B", []*domain.Question{sampleQuestion("Q2")})
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_EmptySubject(t *testing.T) {
	db, _ := setupTestDB(t)
	_, err := NewQuestionDatabaseAdapter(db, nil).Upsert(context.Background(), " ", nil)
	assert.True(t, domain.HasCode(err, domain.ErrInvalidInput))
}

func TestCheckSchema(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)

	mock.ExpectQuery(`FROM questions q WHERE 1 = 0`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`FROM question_keywords WHERE 1 = 0`).WillReturnRows(sqlmock.NewRows([]string{"question_id"}))
	assert.NoError(t, repo.CheckSchema(context.Background()))

	mock.ExpectQuery(`FROM questions q WHERE 1 = 0`).WillReturnError(errors.New("no such column: q.source_file"))
	err := repo.CheckSchema(context.Background())
	assert.True(t, domain.HasCode(err, domain.ErrSchemaMismatch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeywordVocabulary(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)

	mock.ExpectQuery(`FROM question_keywords k\s+JOIN questions q ON q.id = k.question_id\s+WHERE q.subject = \?`).
		WithArgs("Cloud").
		WillReturnRows(sqlmock.NewRows([]string{"keyword", "frequency"}).
			AddRow("k8s", 4).
			AddRow("docker", 1))

	vocab, err := repo.KeywordVocabulary(context.Background(), "Cloud")

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"k8s": 4, "docker": 1}, vocab)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectsAndKeywords(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT subject FROM questions ORDER BY subject`)).
		WillReturnRows(sqlmock.NewRows([]string{"subject"}).AddRow("Cloud").AddRow("Réseaux IP"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT keyword FROM question_keywords ORDER BY keyword`)).
		WillReturnRows(sqlmock.NewRows([]string{"keyword"}))

	subjects, err := repo.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Cloud", "Réseaux IP"}, subjects)

	keywords, err := repo.Keywords(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, keywords)
	assert.Empty(t, keywords)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionIDs_Filter(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT q.id FROM questions q JOIN question_keywords k ON k.question_id = q.id WHERE 1 = 1 AND q.subject = ? AND k.keyword IN (?, ?) ORDER BY q.id`)).
		WithArgs("Cloud", "k8s", "docker").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(4))

	ids, err := repo.QuestionIDs(context.Background(), domain.QuestionFilter{Subject: "Cloud", Keywords: []string{"k8s", "docker"}})

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionsByIDs_KeepsRequestedOrder(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)
	now := time.Now()

	cols := []string{"id", "subject", "question_text", "question_type", "choices", "answers",
		"source_keywords", "source_file", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM questions q WHERE q.id IN \(\?, \?\)`).
		WithArgs(5, 2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, "Cloud", "Q2", "QCM", `{"A":"a","B":"b"}`, `["A"]`, `["x"]`, nil, now, now).
			AddRow(5, "Cloud", "Q5", "QCM", `{"A":"a","B":"b","C":"c"}`, `["C","A"]`, `["y"]`, "doc.md", now, now))
	mock.ExpectQuery(`FROM question_keywords WHERE question_id IN \(\?, \?\)`).
		WithArgs(5, 2).
		WillReturnRows(sqlmock.NewRows([]string{"question_id", "keyword"}).
			AddRow(2, "x").
			AddRow(5, "y").
			AddRow(5, "b"))

	qs, err := repo.QuestionsByIDs(context.Background(), []int64{5, 2})

	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, int64(5), qs[0].ID)
	assert.Equal(t, []string{"C", "A"}, qs[0].Answers)
	assert.Equal(t, []string{"b", "y"}, qs[0].CanonicalKeywords)
	assert.Equal(t, "doc.md", qs[0].SourceFile)
	assert.Equal(t, "", qs[1].SourceFile)
	assert.Equal(t, map[string]string{"A": "a", "B": "b"}, qs[1].Choices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionByID_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)

	mock.ExpectQuery(`FROM questions q WHERE q.id IN`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`FROM question_keywords WHERE question_id IN`).WillReturnRows(sqlmock.NewRows([]string{"question_id"}))

	_, err := repo.QuestionByID(context.Background(), 99)

	assert.True(t, domain.HasCode(err, domain.ErrNotFound))
}

func TestStats(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewQuestionDatabaseAdapter(db, nil)
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM questions`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(15))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(DISTINCT keyword) FROM question_keywords`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))
	mock.ExpectQuery(`GROUP BY subject`).
		WillReturnRows(sqlmock.NewRows([]string{"subject", "total"}).AddRow("Cloud", 10).AddRow("Réseaux IP", 5))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_at FROM questions WHERE id = (SELECT MAX(id) FROM questions)`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(last))

	stats, err := repo.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 15, stats.TotalQuestions)
	assert.Equal(t, 2, stats.TotalSubjects)
	assert.Equal(t, 9, stats.TotalKeywords)
	assert.Equal(t, map[string]int{"Cloud": 10, "Réseaux IP": 5}, stats.QuestionsPerSubject)
	require.NotNil(t, stats.LastGeneratedAt)
	assert.True(t, last.Equal(*stats.LastGeneratedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db, mock := setupTestDB(t)
	tm := NewTransactionManagerAdapter(db, nil)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		_, ok := txFromContext(ctx)
		assert.True(t, ok)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

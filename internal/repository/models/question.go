package models

import (
	"database/sql"
	"time"
)

// Question is a row of the questions table.
type Question struct {
	ID             int64          `db:"id"`
	Subject        string         `db:"subject"`
	QuestionText   string         `db:"question_text"`
	QuestionType   string         `db:"question_type"`
	Choices        ChoiceMap      `db:"choices"`
	Answers        StringSlice    `db:"answers"`
	SourceKeywords StringSlice    `db:"source_keywords"`
	SourceFile     sql.NullString `db:"source_file"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// QuestionKeyword is a row of the question_keywords table.
type QuestionKeyword struct {
	QuestionID int64  `db:"question_id"`
	Keyword    string `db:"keyword"`
}

// KeywordCount is a canonical keyword with the number of questions using it.
type KeywordCount struct {
	Keyword   string `db:"keyword"`
	Frequency int    `db:"frequency"`
}

// SubjectCount is a subject with its question count.
type SubjectCount struct {
	Subject string `db:"subject"`
	Total   int    `db:"total"`
}

package domain

import "context"

// QuestionRepository defines the interface for question persistence
type QuestionRepository interface {
	// Upsert stores questions idempotently keyed by (subject, question_text)
	// and returns their IDs in input order.
	Upsert(ctx context.Context, subject string, questions []*Question) ([]int64, error)

	// CheckSchema verifies the storage schema the pipeline expects.
	CheckSchema(ctx context.Context) error

	// KeywordVocabulary returns canonical keyword → question count for a subject.
	KeywordVocabulary(ctx context.Context, subject string) (map[string]int, error)

	// Keywords returns all canonical keywords in order.
	Keywords(ctx context.Context) ([]string, error)

	// Subjects returns all subjects in order.
	Subjects(ctx context.Context) ([]string, error)

	QuestionIDs(ctx context.Context, filter QuestionFilter) ([]int64, error)
	QuestionsByIDs(ctx context.Context, ids []int64) ([]*Question, error)
	QuestionByID(ctx context.Context, id int64) (*Question, error)
	Stats(ctx context.Context) (*Stats, error)
}

// TransactionManager runs fn inside one storage transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

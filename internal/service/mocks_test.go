package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/stretchr/testify/mock"
)

// --- MockQuestionRepository ---
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Upsert(ctx context.Context, subject string, questions []*domain.Question) ([]int64, error) {
	args := m.Called(ctx, subject, questions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockQuestionRepository) CheckSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockQuestionRepository) KeywordVocabulary(ctx context.Context, subject string) (map[string]int, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockQuestionRepository) Keywords(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockQuestionRepository) Subjects(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockQuestionRepository) QuestionIDs(ctx context.Context, filter domain.QuestionFilter) ([]int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockQuestionRepository) QuestionsByIDs(ctx context.Context, ids []int64) ([]*domain.Question, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Question), args.Error(1)
}

func (m *MockQuestionRepository) QuestionByID(ctx context.Context, id int64) (*domain.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Question), args.Error(1)
}

func (m *MockQuestionRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Stats), args.Error(1)
}

// --- MockCache ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- passthroughTx ---
type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- memoryRepository ---

// memoryRepository keeps questions in memory keyed by (subject, text) so
// generation tests can observe idempotency.
type memoryRepository struct {
	mu          sync.Mutex
	questions   []*domain.Question
	nextID      int64
	schemaErr   error
	upsertErr   error
	upsertCalls int
}

func (r *memoryRepository) Upsert(_ context.Context, _ string, questions []*domain.Question) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertCalls++
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}

	ids := make([]int64, len(questions))
	for i, q := range questions {
		if existing := r.find(q.Subject, q.QuestionText); existing != nil {
			existing.CanonicalKeywords = append([]string(nil), q.CanonicalKeywords...)
			q.ID = existing.ID
		} else {
			r.nextID++
			q.ID = r.nextID
			stored := *q
			stored.CanonicalKeywords = append([]string(nil), q.CanonicalKeywords...)
			r.questions = append(r.questions, &stored)
		}
		ids[i] = q.ID
	}
	return ids, nil
}

func (r *memoryRepository) find(subject, text string) *domain.Question {
	for _, q := range r.questions {
		if q.Subject == subject && q.QuestionText == text {
			return q
		}
	}
	return nil
}

func (r *memoryRepository) CheckSchema(context.Context) error {
	return r.schemaErr
}

func (r *memoryRepository) KeywordVocabulary(_ context.Context, subject string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vocab := make(map[string]int)
	for _, q := range r.questions {
		if q.Subject != subject {
			continue
		}
		for _, kw := range q.CanonicalKeywords {
			vocab[kw]++
		}
	}
	return vocab, nil
}

func (r *memoryRepository) Keywords(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	keywords := []string{}
	for _, q := range r.questions {
		for _, kw := range q.CanonicalKeywords {
			if _, ok := seen[kw]; !ok {
				seen[kw] = struct{}{}
				keywords = append(keywords, kw)
			}
		}
	}
	sort.Strings(keywords)
	return keywords, nil
}

func (r *memoryRepository) Subjects(context.Context) ([]string, error) { return []string{}, nil }

func (r *memoryRepository) QuestionIDs(context.Context, domain.QuestionFilter) ([]int64, error) {
	return nil, nil
}

func (r *memoryRepository) QuestionsByIDs(context.Context, []int64) ([]*domain.Question, error) {
	return nil, nil
}

func (r *memoryRepository) QuestionByID(context.Context, int64) (*domain.Question, error) {
	return nil, domain.NewNotFoundError("question not found")
}

func (r *memoryRepository) Stats(context.Context) (*domain.Stats, error) {
	return &domain.Stats{}, nil
}

func (r *memoryRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.questions)
}

func (r *memoryRepository) byText(text string) *domain.Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.QuestionText == text {
			return q
		}
	}
	return nil
}

// --- scriptedCompletion ---

// scriptedCompletion answers call n (1-indexed) with reply(n).
type scriptedCompletion struct {
	mu    sync.Mutex
	calls int
	reply func(call int) (string, error)
}

func (c *scriptedCompletion) Complete(context.Context, string) (string, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()
	return c.reply(call)
}

func (c *scriptedCompletion) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// --- stubEmbeddings ---
type stubEmbeddings struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbeddings) Generate(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return nil, domain.NewEmbeddingUnavailableError(nil).WithContext("text", text)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Osyna/QuestionAir/internal/cache"
	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/Osyna/QuestionAir/internal/dto"
	"github.com/Osyna/QuestionAir/internal/validation"
	"go.uber.org/zap"
)

// ReadCacheExpiration bounds how stale cached listings can get between runs.
const ReadCacheExpiration = 10 * time.Minute

// QuizService defines the interface for quiz-related operations
type QuizService interface {
	GetSubjects(ctx context.Context) ([]string, error)
	GetKeywords(ctx context.Context) ([]string, error)
	GetRandomQuestion(ctx context.Context, subject string, keywords []string) (*dto.QuestionResponse, error)
	GenerateQuiz(ctx context.Context, subject string, keywords []string, numQuestions int) (*dto.QuizResponse, error)
	GetStats(ctx context.Context) (*dto.StatsResponse, error)
	CheckAnswer(ctx context.Context, req *dto.CheckAnswerRequest) (*dto.CheckAnswerResponse, error)
}

// quizService implements QuizService
type quizService struct {
	repo    domain.QuestionRepository
	cache   domain.Cache // optional
	logger  *zap.Logger
	shuffle func(n int, swap func(i, j int))
}

// NewQuizService creates a new instance of quizService. cache may be nil.
func NewQuizService(repo domain.QuestionRepository, cache domain.Cache, logger *zap.Logger) QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &quizService{repo: repo, cache: cache, logger: logger, shuffle: rand.Shuffle}
}

// GetSubjects implements QuizService
func (s *quizService) GetSubjects(ctx context.Context) ([]string, error) {
	var subjects []string
	if s.fromCache(ctx, cache.SubjectsKey, &subjects) {
		return subjects, nil
	}
	subjects, err := s.repo.Subjects(ctx)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, cache.SubjectsKey, subjects)
	return subjects, nil
}

// GetKeywords implements QuizService
func (s *quizService) GetKeywords(ctx context.Context) ([]string, error) {
	var keywords []string
	if s.fromCache(ctx, cache.KeywordsKey, &keywords) {
		return keywords, nil
	}
	keywords, err := s.repo.Keywords(ctx)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, cache.KeywordsKey, keywords)
	return keywords, nil
}

// GetRandomQuestion implements QuizService
func (s *quizService) GetRandomQuestion(ctx context.Context, subject string, keywords []string) (*dto.QuestionResponse, error) {
	quiz, err := s.GenerateQuiz(ctx, subject, keywords, 1)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, domain.NewNotFoundError("no question matches the requested filters").
			WithContext("subject", subject).
			WithContext("keywords", keywords)
	}
	return &quiz.Questions[0], nil
}

// GenerateQuiz samples up to numQuestions matching questions without
// replacement. No match yields an empty quiz.
func (s *quizService) GenerateQuiz(ctx context.Context, subject string, keywords []string, numQuestions int) (*dto.QuizResponse, error) {
	if numQuestions < 1 || numQuestions > validation.MaxQuizQuestions {
		return nil, domain.NewInvalidInputError("num_questions must be between 1 and 50")
	}

	ids, err := s.repo.QuestionIDs(ctx, domain.QuestionFilter{Subject: subject, Keywords: keywords})
	if err != nil {
		return nil, err
	}
	resp := &dto.QuizResponse{Subject: subject, Keywords: keywords, Questions: []dto.QuestionResponse{}}
	if len(ids) == 0 {
		return resp, nil
	}

	s.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > numQuestions {
		ids = ids[:numQuestions]
	}

	questions, err := s.repo.QuestionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, q := range questions {
		resp.Questions = append(resp.Questions, toQuestionResponse(q))
	}
	return resp, nil
}

// GetStats implements QuizService
func (s *quizService) GetStats(ctx context.Context) (*dto.StatsResponse, error) {
	var cached dto.StatsResponse
	if s.fromCache(ctx, cache.StatsKey, &cached) {
		return &cached, nil
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.StatsResponse{
		TotalQuestions:      stats.TotalQuestions,
		TotalSubjects:       stats.TotalSubjects,
		TotalKeywords:       stats.TotalKeywords,
		QuestionsPerSubject: stats.QuestionsPerSubject,
		LastGeneratedAt:     stats.LastGeneratedAt,
	}
	s.toCache(ctx, cache.StatsKey, resp)
	return resp, nil
}

// CheckAnswer grades a selection against the first listed answer.
func (s *quizService) CheckAnswer(ctx context.Context, req *dto.CheckAnswerRequest) (*dto.CheckAnswerResponse, error) {
	q, err := s.repo.QuestionByID(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if q.AuthoritativeAnswer() == "" {
		s.logger.Error("Stored question has no answer", zap.Int64("question_id", q.ID))
		return nil, domain.NewInternalError(fmt.Sprintf("question %d has no answer to grade against", q.ID), nil)
	}
	selected := strings.ToUpper(strings.TrimSpace(req.Selected))
	if _, ok := q.Choices[selected]; !ok {
		return nil, domain.NewInvalidInputError("selected letter is not one of the question's choices").
			WithContext("selected", req.Selected).
			WithContext("choices", q.ChoiceKeys())
	}
	return &dto.CheckAnswerResponse{
		Correct: q.IsCorrect(selected),
		Answer:  q.AuthoritativeAnswer(),
	}, nil
}

func (s *quizService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("QuizService: cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		s.logger.Warn("QuizService: discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *quizService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("QuizService: failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, string(data), ReadCacheExpiration); err != nil {
		s.logger.Warn("QuizService: cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func toQuestionResponse(q *domain.Question) dto.QuestionResponse {
	return dto.QuestionResponse{
		ID:           q.ID,
		Subject:      q.Subject,
		QuestionText: q.QuestionText,
		Choices:      q.Choices,
		Answers:      q.Answers,
	}
}

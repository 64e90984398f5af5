package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Osyna/QuestionAir/internal/cache"
	"github.com/Osyna/QuestionAir/internal/chunker"
	"github.com/Osyna/QuestionAir/internal/config"
	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/Osyna/QuestionAir/internal/keyword"
	"github.com/Osyna/QuestionAir/internal/parser"
	"github.com/Osyna/QuestionAir/internal/prompt"
	"github.com/Osyna/QuestionAir/internal/util"
	"github.com/Osyna/QuestionAir/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// GenerationService turns source documents into persisted questions.
type GenerationService struct {
	repo       domain.QuestionRepository
	txManager  domain.TransactionManager
	completion domain.CompletionService
	embeddings domain.EmbeddingService
	readCache  domain.Cache // optional

	chunker   *chunker.Chunker
	builder   *prompt.Builder
	parser    *parser.RowParser
	validator *validation.BatchValidator

	cfg       config.GenerationConfig
	threshold float64
	limiter   *rate.Limiter
	logger    *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewGenerationService creates a GenerationService. readCache may be nil;
// when set, the read API cache entries are dropped after a run that stored
// questions.
func NewGenerationService(
	repo domain.QuestionRepository,
	txManager domain.TransactionManager,
	completion domain.CompletionService,
	embeddings domain.EmbeddingService,
	readCache domain.Cache,
	cfg *config.Config,
	logger *zap.Logger,
) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	gen := cfg.Generation
	if gen.Workers < 1 {
		gen.Workers = 1
	}

	limit := rate.Inf
	if cfg.LLM.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.LLM.RequestsPerSecond)
	}

	return &GenerationService{
		repo:       repo,
		txManager:  txManager,
		completion: completion,
		embeddings: embeddings,
		readCache:  readCache,
		chunker:    chunker.New(gen.MinContentLength),
		builder:    prompt.NewBuilder(),
		parser:     parser.NewRowParser(logger),
		validator:  validation.NewBatchValidator(logger),
		cfg:        gen,
		threshold:  cfg.Embedding.SimilarityThreshold,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
		sleep:      sleepContext,
	}
}

// run holds the state shared by every chunk of one Run call.
type run struct {
	id         string
	normalizer *keyword.Normalizer
	embeddings *keyword.EmbeddingCache
}

// Run processes docs in order and reports the outcome of every chunk. The
// only error returned is SCHEMA_MISMATCH, before any document is touched;
// every other failure is recorded in the report. Cancelling ctx stops new
// work: in-flight calls finish, their batches are dropped, and the remaining
// chunks are reported as skipped.
func (s *GenerationService) Run(ctx context.Context, docs []domain.SourceDocument) (*domain.RunReport, error) {
	report := &domain.RunReport{
		RunID:     util.NewULID(),
		StartedAt: time.Now().UTC(),
		Documents: []domain.DocumentReport{},
	}
	l := s.logger.With(zap.String("run_id", report.RunID))

	if err := s.repo.CheckSchema(context.WithoutCancel(ctx)); err != nil {
		l.Error("Storage schema check failed", zap.Error(err))
		return nil, err
	}

	embCache := keyword.NewEmbeddingCache(s.embeddings)
	r := &run{
		id:         report.RunID,
		embeddings: embCache,
		normalizer: keyword.NewNormalizer(embCache, s.threshold, l),
	}

	l.Info("Generation run started", zap.Int("documents", len(docs)), zap.Int("workers", s.cfg.Workers))
	for _, doc := range docs {
		report.Add(s.processDocument(ctx, r, doc))
	}
	report.FinishedAt = time.Now().UTC()

	if report.Done > 0 {
		s.invalidateReadCache(context.WithoutCancel(ctx))
	}

	l.Info("Generation run finished",
		zap.Int("done", report.Done),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (s *GenerationService) processDocument(ctx context.Context, r *run, doc domain.SourceDocument) domain.DocumentReport {
	l := s.logger.With(zap.String("run_id", r.id), zap.String("source_id", doc.ID))
	docReport := domain.DocumentReport{SourceID: doc.ID, State: domain.DocumentPending, Chunks: []domain.ChunkReport{}}

	chunks, shortErrs := s.chunker.Split(doc.ID, doc.Text)
	docReport.State = domain.DocumentChunked
	for _, e := range shortErrs {
		l.Info("Chunk below minimum length", zap.Error(e))
	}
	if len(chunks) == 0 {
		l.Info("Document has no content")
		docReport.State = domain.DocumentDone
		return docReport
	}

	vocabulary, err := s.repo.Keywords(context.WithoutCancel(ctx))
	if err != nil {
		l.Warn("Keyword vocabulary unavailable, prompting without suggestions", zap.Error(err))
	}

	reports := make([]domain.ChunkReport, len(chunks))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			reports[i] = skipped(newChunkReport(chunk), domain.NewCancelledError(ctx.Err()))
			continue
		}
		g.Go(func() error {
			reports[i] = s.processChunk(ctx, r, doc, chunk, vocabulary)
			return nil
		})
	}
	_ = g.Wait() // chunk failures are recorded in their reports

	docReport.Chunks = reports
	docReport.State = domain.DocumentDone
	return docReport
}

// processChunk walks one chunk through the pipeline. Cancellation is
// checked before each stage.
func (s *GenerationService) processChunk(ctx context.Context, r *run, doc domain.SourceDocument, chunk domain.ContentChunk, vocabulary []string) domain.ChunkReport {
	rep := newChunkReport(chunk)
	l := s.logger.With(zap.String("run_id", r.id), zap.String("chunk_id", chunk.ID()))

	if !chunk.MinLengthSatisfied {
		return skipped(rep, domain.NewChunkTooShortError(chunk.ID(), utf8.RuneCountInString(strings.TrimSpace(chunk.Text)), s.cfg.MinContentLength))
	}
	if ctx.Err() != nil {
		return skipped(rep, domain.NewCancelledError(ctx.Err()))
	}

	promptText := s.builder.Build(chunk, vocabulary)
	rep.Stage = domain.StagePrompted

	var batch *validation.BatchResult
	maxAttempts := s.cfg.MaxBatchRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return skipped(rep, domain.NewCancelledError(ctx.Err()))
		}
		rep.Attempts = attempt

		reply, err := s.complete(ctx, l, promptText)
		if err != nil {
			if domain.HasCode(err, domain.ErrCancelled) {
				return skipped(rep, err)
			}
			return failed(l, rep, err)
		}
		rep.Stage = domain.StageCompleted

		parsed := s.parser.Parse(domain.RawCompletion{ChunkID: chunk.ID(), Text: reply})
		rep.Stage = domain.StageParsed

		result, err := s.validator.Validate(parsed.Candidates, parsed.Errors)
		if err != nil {
			l.Info("Batch rejected",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Int("dropped_rows", len(parsed.Errors)),
				zap.Int("reply_length", len(reply)),
				zap.Error(err))
			l.Debug("Rejected completion", zap.String("reply", reply))
			if attempt == maxAttempts {
				rep.Diagnostics = appendDiagnostics(rep.Diagnostics, parsed.Errors, result.Dropped)
				return failed(l, rep, err)
			}
			continue
		}
		rep.Diagnostics = appendDiagnostics(rep.Diagnostics, parsed.Errors, parsed.Diagnostics, result.Dropped, result.Diagnostics)
		batch = result
		break
	}
	rep.Stage = domain.StageValidated

	if ctx.Err() != nil {
		// the validated batch is dropped whole
		return skipped(rep, domain.NewCancelledError(ctx.Err()))
	}

	questions := make([]*domain.Question, len(batch.Questions))
	for i, c := range batch.Questions {
		questions[i] = domain.NewQuestion(c, doc.ID)
	}

	var degraded bool
	err := s.withRetry(ctx, l, "persist", func(callCtx context.Context) error {
		var err error
		degraded, err = s.normalizeAndPersist(callCtx, r, questions)
		return err
	})
	if err != nil {
		if domain.HasCode(err, domain.ErrCancelled) {
			return skipped(rep, err)
		}
		return failed(l, rep, err)
	}
	if degraded {
		rep.Diagnostics = append(rep.Diagnostics,
			domain.NewError(domain.ErrNormalizationDegraded, "keywords stored without normalization", nil).Error())
	}

	rep.Stage = domain.StagePersisted
	rep.Status = domain.ChunkDone
	rep.QuestionIDs = make([]int64, len(questions))
	for i, q := range questions {
		rep.QuestionIDs[i] = q.ID
	}
	l.Info("Chunk persisted", zap.Int64s("question_ids", rep.QuestionIDs), zap.Int("attempts", rep.Attempts))
	return rep
}

// normalizeAndPersist normalizes keywords per subject against the stored
// vocabulary and upserts every question of the batch in one transaction.
func (s *GenerationService) normalizeAndPersist(ctx context.Context, r *run, questions []*domain.Question) (bool, error) {
	subjects, bySubject := groupBySubject(questions)

	// Embed outside the transaction so the write lock is not held across
	// network calls; the in-transaction pass then hits the run cache.
	for _, subject := range subjects {
		vocab, err := s.repo.KeywordVocabulary(ctx, subject)
		if err != nil {
			return false, err
		}
		s.prewarm(ctx, r, vocab, bySubject[subject])
	}

	degraded := false
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, subject := range subjects {
			qs := bySubject[subject]
			vocab, err := s.repo.KeywordVocabulary(txCtx, subject)
			if err != nil {
				return err
			}
			frequencies := make(map[string]int, len(vocab))
			for kw, n := range vocab {
				frequencies[kw] = n
			}
			for _, q := range qs {
				for _, kw := range q.SourceKeywords {
					frequencies[kw]++
				}
			}

			res := r.normalizer.Normalize(txCtx, frequencies)
			degraded = degraded || res.Degraded
			for _, q := range qs {
				q.CanonicalKeywords = res.Canonicalize(q.SourceKeywords)
			}

			if _, err := s.repo.Upsert(txCtx, subject, qs); err != nil {
				return err
			}
		}
		return nil
	})
	return degraded, err
}

func (s *GenerationService) prewarm(ctx context.Context, r *run, vocab map[string]int, qs []*domain.Question) {
	keywords := make([]string, 0, len(vocab))
	for kw := range vocab {
		keywords = append(keywords, kw)
	}
	for _, q := range qs {
		keywords = append(keywords, q.SourceKeywords...)
	}
	for _, kw := range keywords {
		if _, err := r.embeddings.Get(ctx, kw); err != nil {
			// Normalize reports the degradation
			return
		}
	}
}

// complete paces and retries one completion request. The call itself runs
// detached from ctx so cancellation never interrupts it mid-flight.
func (s *GenerationService) complete(ctx context.Context, l *zap.Logger, promptText string) (string, error) {
	var reply string
	err := s.withRetry(ctx, l, "completion", func(callCtx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return domain.NewCancelledError(err)
		}
		var err error
		reply, err = s.completion.Complete(callCtx, promptText)
		return err
	})
	return reply, err
}

// withRetry calls fn until it succeeds, fails with a non-retryable error,
// or MaxServiceRetries retries are spent. fn receives a context detached from
// ctx's cancellation; waiting between attempts honours it.
func (s *GenerationService) withRetry(ctx context.Context, l *zap.Logger, op string, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(context.WithoutCancel(ctx))
		if err == nil || !domain.IsRetryable(err) || attempt >= s.cfg.MaxServiceRetries {
			return err
		}
		delay := Backoff(attempt, s.cfg.BackoffBase, s.cfg.BackoffMax)
		l.Warn("Retrying after transient failure",
			zap.String("operation", op),
			zap.Int("retry", attempt+1),
			zap.Int("max_retries", s.cfg.MaxServiceRetries),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := s.sleep(ctx, delay); serr != nil {
			return domain.NewCancelledError(serr)
		}
	}
}

func (s *GenerationService) invalidateReadCache(ctx context.Context) {
	if s.readCache == nil {
		return
	}
	if err := s.readCache.Delete(ctx, cache.ReadKeys()...); err != nil {
		s.logger.Warn("Failed to invalidate read cache", zap.Error(err))
	}
}

// Backoff returns the delay before retry n (0-indexed): base doubled per
// attempt, capped at ceiling, plus up to 50% jitter.
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if ceiling < base {
		ceiling = base
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > ceiling || d <= 0 {
		d = ceiling
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func groupBySubject(questions []*domain.Question) ([]string, map[string][]*domain.Question) {
	var order []string
	groups := make(map[string][]*domain.Question)
	for _, q := range questions {
		if _, ok := groups[q.Subject]; !ok {
			order = append(order, q.Subject)
		}
		groups[q.Subject] = append(groups[q.Subject], q)
	}
	return order, groups
}

func newChunkReport(chunk domain.ContentChunk) domain.ChunkReport {
	return domain.ChunkReport{
		ChunkID:  chunk.ID(),
		SourceID: chunk.SourceID,
		Index:    chunk.Index,
		Stage:    domain.StagePending,
	}
}

func skipped(rep domain.ChunkReport, err error) domain.ChunkReport {
	rep.Status = domain.ChunkSkipped
	rep.Reason = domain.CodeOf(err)
	rep.Message = errorMessage(err)
	return rep
}

func failed(l *zap.Logger, rep domain.ChunkReport, err error) domain.ChunkReport {
	rep.Status = domain.ChunkFailed
	rep.Reason = domain.CodeOf(err)
	rep.Message = errorMessage(err)
	l.Warn("Chunk failed",
		zap.String("stage", string(rep.Stage)),
		zap.String("reason", string(rep.Reason)),
		zap.Int("attempts", rep.Attempts),
		zap.Error(err))
	return rep
}

func errorMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if de.Cause != nil {
			return fmt.Sprintf("%s: %v", de.Message, de.Cause)
		}
		return de.Message
	}
	return err.Error()
}

func appendDiagnostics(out []string, groups ...[]*domain.DomainError) []string {
	for _, group := range groups {
		for _, e := range group {
			out = append(out, e.Error())
		}
	}
	return out
}

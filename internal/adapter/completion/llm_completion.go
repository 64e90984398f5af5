package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const (
	DefaultTimeout     = 120 * time.Second
	DefaultTemperature = 0.2
)

// LLMCompletionService implements domain.CompletionService over any
// langchaingo model.
type LLMCompletionService struct {
	model       llms.Model
	name        string
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

// NewLLMCompletionService wraps an existing model. name is only used in logs.
func NewLLMCompletionService(model llms.Model, name string, temperature float64, timeout time.Duration, logger *zap.Logger) *LLMCompletionService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMCompletionService{
		model:       model,
		name:        name,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger.With(zap.String("model", name)),
	}
}

// NewOllamaCompletionService connects to an Ollama server.
func NewOllamaCompletionService(serverURL, modelName string, temperature float64, timeout time.Duration, logger *zap.Logger) (*LLMCompletionService, error) {
	if serverURL == "" || modelName == "" {
		return nil, fmt.Errorf("ollama server URL and model are required")
	}
	llm, err := ollama.New(ollama.WithModel(modelName), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return NewLLMCompletionService(llm, modelName, temperature, timeout, logger), nil
}

// NewOpenAICompletionService uses the OpenAI chat API. baseURL may be empty.
func NewOpenAICompletionService(apiKey, baseURL, modelName string, temperature float64, timeout time.Duration, logger *zap.Logger) (*LLMCompletionService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key cannot be empty")
	}
	opts := []openai.Option{openai.WithToken(apiKey)}
	if modelName != "" {
		opts = append(opts, openai.WithModel(modelName))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return NewLLMCompletionService(llm, modelName, temperature, timeout, logger), nil
}

// Complete sends prompt as a single user turn and returns the reply text
// with any reasoning block removed. A reply that does not arrive within the
// configured timeout is TIMEOUT; see classifyError for the rest.
func (s *LLMCompletionService) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := llms.GenerateFromSinglePrompt(callCtx, s.model, prompt, llms.WithTemperature(s.temperature))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("Completion request timed out", zap.Duration("timeout", s.timeout))
			return "", domain.NewTimeoutError(fmt.Errorf("completion timed out after %s: %w", s.timeout, err))
		}
		s.logger.Warn("Completion request failed", zap.Error(err))
		return "", classifyError(err)
	}

	s.logger.Debug("Completion received",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("reply_length", len(reply)))
	return StripThinking(reply), nil
}

// Provider clients only surface the HTTP status in the error text:
// openai "API returned unexpected status code: 401: ...", ollama
// "404 Not Found: model ... not found".
var (
	statusCodePattern = regexp.MustCompile(`(?i)status(?: code)?:?\s*(\d{3})\b`)
	statusLinePattern = regexp.MustCompile(`^(\d{3}) [A-Z]`)
)

func httpStatus(err error) (int, bool) {
	msg := err.Error()
	m := statusCodePattern.FindStringSubmatch(msg)
	if m == nil {
		m = statusLinePattern.FindStringSubmatch(msg)
	}
	if m == nil {
		return 0, false
	}
	code, convErr := strconv.Atoi(m[1])
	return code, convErr == nil
}

// classifyError maps a failed call to a domain error. Only failures a retry
// can fix are SERVICE_UNAVAILABLE: no status at all (connection errors,
// empty replies), 408, 429 and 5xx. Rejected credentials or an unknown
// model are INVALID_CONFIG; any other 4xx is INVALID_INPUT.
func classifyError(err error) error {
	wrapped := fmt.Errorf("completion call failed: %w", err)
	status, ok := httpStatus(err)
	switch {
	case !ok,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return domain.NewServiceUnavailableError(wrapped)
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		return domain.NewError(domain.ErrInvalidConfig, "model or credentials rejected by the provider", wrapped).
			WithContext("status", status)
	case status >= http.StatusBadRequest:
		return domain.NewError(domain.ErrInvalidInput, "completion request rejected by the provider", wrapped).
			WithContext("status", status)
	default:
		return domain.NewServiceUnavailableError(wrapped)
	}
}

// StripThinking removes every <think>...</think> block emitted by reasoning
// models. An unterminated block is left as is.
func StripThinking(reply string) string {
	for {
		start := strings.Index(reply, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(reply[start:], "</think>")
		if end == -1 {
			break
		}
		reply = reply[:start] + reply[start+end+len("</think>"):]
	}
	return strings.TrimSpace(reply)
}

var _ domain.CompletionService = (*LLMCompletionService)(nil)

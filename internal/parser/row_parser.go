package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Osyna/QuestionAir/internal/domain"
	"go.uber.org/zap"
)

const fieldsPerRow = 7

var (
	keywordPattern = regexp.MustCompile(`^[^\s,\[\]]+$`)
	localIDPattern = regexp.MustCompile(`^Q[1-5]$`)
)

// Result holds what one completion yielded. Errors are rows that were
// dropped; Diagnostics are notes about rows that were kept.
type Result struct {
	Candidates  []domain.CandidateQuestion
	Errors      []*domain.DomainError
	Diagnostics []*domain.DomainError
}

// RowParser turns a completion into candidate questions. It never fails as
// a whole: each bad row is recorded and parsing moves on.
type RowParser struct {
	logger *zap.Logger
}

func NewRowParser(logger *zap.Logger) *RowParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowParser{logger: logger}
}

// Parse extracts every row matching the pipe grammar from raw.
func (p *RowParser) Parse(raw domain.RawCompletion) Result {
	var res Result
	text := strings.ReplaceAll(strings.ReplaceAll(raw.Text, "\r\n", "\n"), "\r", "\n")
	taken := make(map[string]int)

	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		fields, ok := splitRow(line)
		if !ok {
			continue
		}

		cand, diags, err := parseFields(lineNo, fields)
		res.Diagnostics = append(res.Diagnostics, diags...)
		if err == nil {
			if first, dup := taken[cand.LocalID]; dup {
				err = domain.NewRowError(domain.ErrDuplicateID, lineNo,
					fmt.Sprintf("id %s already used on line %d", cand.LocalID, first)).
					WithContext("local_id", cand.LocalID)
			}
		}
		if err != nil {
			p.logger.Debug("Dropping completion row",
				zap.String("chunk_id", raw.ChunkID),
				zap.Int("line", lineNo),
				zap.String("code", string(err.Code)),
				zap.String("reason", err.Message))
			res.Errors = append(res.Errors, err)
			continue
		}

		taken[cand.LocalID] = lineNo
		res.Candidates = append(res.Candidates, cand)
	}

	return res
}

func parseFields(line int, f []string) (domain.CandidateQuestion, []*domain.DomainError, *domain.DomainError) {
	var diags []*domain.DomainError
	cand := domain.CandidateQuestion{Line: line}

	words := strings.Fields(f[0])
	if len(words) == 0 {
		return cand, nil, domain.NewRowError(domain.ErrEmptyField, line, "subject is empty")
	}
	if len(words) > 2 {
		diags = append(diags, domain.NewRowError(domain.ErrSubjectTruncated, line,
			fmt.Sprintf("subject %q truncated to two words", f[0])))
		words = words[:2]
	}
	cand.Subject = strings.Join(words, " ")

	keywords, ok := parseKeywords(f[1])
	if !ok {
		return cand, diags, domain.NewRowError(domain.ErrMalformedKeywords, line,
			fmt.Sprintf("keywords %q must be [kw1,kw2,kw3] without spaces", f[1]))
	}
	cand.Keywords = keywords

	if !localIDPattern.MatchString(f[2]) {
		return cand, diags, domain.NewRowError(domain.ErrInvalidID, line,
			fmt.Sprintf("id %q must be Q1 to Q5", f[2]))
	}
	cand.LocalID = f[2]

	if f[3] == "" {
		return cand, diags, domain.NewRowError(domain.ErrEmptyField, line, "question text is empty").
			WithContext("local_id", cand.LocalID)
	}
	cand.QuestionText = f[3]

	if f[4] != `"`+domain.QuestionTypeQCM+`"` {
		return cand, diags, domain.NewRowError(domain.ErrUnsupportedQuestionType, line,
			fmt.Sprintf("question type %s is not \"QCM\"", f[4])).
			WithContext("local_id", cand.LocalID)
	}
	cand.Kind = domain.QuestionTypeQCM

	choices, err := parseChoices(f[5])
	if err != nil {
		return cand, diags, domain.NewRowError(domain.ErrInvalidChoicesJSON, line, err.Error()).
			WithContext("local_id", cand.LocalID)
	}
	cand.Choices = choices

	answers, code, err := parseAnswers(f[6], choices)
	if err != nil {
		return cand, diags, domain.NewRowError(code, line, err.Error()).
			WithContext("local_id", cand.LocalID)
	}
	cand.Answers = answers

	for _, d := range diags {
		d.WithContext("local_id", cand.LocalID)
	}
	return cand, diags, nil
}

// splitRow returns the seven trimmed fields of a table row, or false when
// the line is not a question row.
func splitRow(line string) ([]string, bool) {
	s := strings.TrimSpace(line)
	if len(s) < 2 || s[0] != '|' || s[len(s)-1] != '|' || s[len(s)-2] == '\\' {
		return nil, false
	}
	fields := splitUnescaped(s[1 : len(s)-1])
	if len(fields) != fieldsPerRow || isSeparator(fields) {
		return nil, false
	}
	return fields, true
}

// splitUnescaped splits on '|' not preceded by a backslash; "\|" becomes a
// literal pipe. Other escapes are left untouched for the JSON fields.
func splitUnescaped(s string) []string {
	var (
		fields []string
		cur    strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '|':
			cur.WriteByte('|')
			i++
		case s[i] == '|':
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	return append(fields, strings.TrimSpace(cur.String()))
}

func isSeparator(fields []string) bool {
	for _, f := range fields {
		if f == "" || strings.Trim(f, "-: ") != "" {
			return false
		}
	}
	return true
}

// parseKeywords accepts exactly KeywordsPerQuestion bracketed tokens with no
// whitespace anywhere between the brackets.
func parseKeywords(s string) ([]string, bool) {
	inner, ok := strings.CutPrefix(s, "[")
	if !ok {
		return nil, false
	}
	inner, ok = strings.CutSuffix(inner, "]")
	if !ok {
		return nil, false
	}
	parts := strings.Split(inner, ",")
	if len(parts) != domain.KeywordsPerQuestion {
		return nil, false
	}
	for _, p := range parts {
		if !keywordPattern.MatchString(p) {
			return nil, false
		}
	}
	return parts, true
}

// parseChoices decodes a strict JSON object of letter → text. The token walk
// catches duplicate keys, which json.Unmarshal would silently collapse.
func parseChoices(s string) (map[string]string, error) {
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("choices %q are not valid JSON", s)
	}

	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("choices: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("choices must be a JSON object")
	}

	choices := make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("choices: %w", err)
		}
		key, _ := keyTok.(string)
		if !domain.IsChoiceLetter(key) {
			return nil, fmt.Errorf("choice key %q must be one of A, B, C, D", key)
		}
		if _, dup := choices[key]; dup {
			return nil, fmt.Errorf("choice key %q appears twice", key)
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("choices: %w", err)
		}
		value, ok := valTok.(string)
		if !ok {
			return nil, fmt.Errorf("choice %s must be a string", key)
		}
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("choice %s is empty", key)
		}
		choices[key] = value
	}

	if len(choices) < domain.MinChoices || len(choices) > domain.MaxChoices {
		return nil, fmt.Errorf("expected %d to %d choices, got %d", domain.MinChoices, domain.MaxChoices, len(choices))
	}
	return choices, nil
}

// parseAnswers decodes the answer array, keeping first-seen order and
// dropping repeated letters.
func parseAnswers(s string, choices map[string]string) ([]string, domain.ErrorCode, error) {
	if !strings.HasPrefix(s, "[") {
		return nil, domain.ErrInvalidAnswer, fmt.Errorf("answers %q must be a JSON array", s)
	}
	var raw []string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, domain.ErrInvalidAnswer, fmt.Errorf("answers %q must be a JSON array of strings: %v", s, err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrNoAnswer, fmt.Errorf("answer list is empty")
	}

	answers := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, a := range raw {
		if _, ok := choices[a]; !ok {
			return nil, domain.ErrInvalidAnswer, fmt.Errorf("answer %q is not a choice key", a)
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		answers = append(answers, a)
	}
	return answers, "", nil
}

package chunker

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultMinContentLength is used when no minimum is configured.
const DefaultMinContentLength = 200

// Chunker splits markdown documents into generation units.
type Chunker struct {
	minContentLength int
	md               goldmark.Markdown
}

// New returns a Chunker enforcing the given minimum length in characters.
func New(minContentLength int) *Chunker {
	if minContentLength <= 0 {
		minContentLength = DefaultMinContentLength
	}
	return &Chunker{
		minContentLength: minContentLength,
		md:               goldmark.New(),
	}
}

type fragment struct {
	heading string
	text    string
}

// Split cuts a document at its headings, merges fragments shorter than the
// minimum into the next one, and flags a trailing fragment that stays too
// short. The flagged chunk is returned with MinLengthSatisfied=false along
// with a CHUNK_TOO_SHORT error.
func (c *Chunker) Split(sourceID, document string) ([]domain.ContentChunk, []*domain.DomainError) {
	fragments := c.fragments(document)

	var (
		chunks  []domain.ContentChunk
		errs    []*domain.DomainError
		pending fragment
	)

	emit := func(f fragment, satisfied bool) domain.ContentChunk {
		chunk := domain.ContentChunk{
			SourceID:           sourceID,
			Index:              len(chunks),
			Heading:            f.heading,
			Text:               f.text,
			MinLengthSatisfied: satisfied,
		}
		chunks = append(chunks, chunk)
		return chunk
	}

	for _, f := range fragments {
		if pending.text != "" {
			f.text = pending.text + "\n\n" + f.text
			if pending.heading != "" {
				f.heading = pending.heading
			}
			pending = fragment{}
		}
		if length(f.text) < c.minContentLength {
			pending = f
			continue
		}
		emit(f, true)
	}

	if pending.text != "" {
		chunk := emit(pending, false)
		errs = append(errs, domain.NewChunkTooShortError(chunk.ID(), length(chunk.Text), c.minContentLength))
	}

	return chunks, errs
}

// fragments returns the document sections delimited by top-level headings.
// Text before the first heading forms its own fragment.
func (c *Chunker) fragments(document string) []fragment {
	src := []byte(strings.ReplaceAll(strings.ReplaceAll(document, "\r\n", "\n"), "\r", "\n"))
	doc := c.md.Parser().Parse(text.NewReader(src))

	type boundary struct {
		offset  int
		heading string
	}
	var bounds []boundary
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		first := h.Lines().At(0)
		bounds = append(bounds, boundary{
			offset:  lineStart(src, first.Start),
			heading: strings.TrimSpace(string(first.Value(src))),
		})
	}

	var out []fragment
	add := func(heading string, b []byte) {
		t := strings.TrimSpace(string(b))
		if t != "" {
			out = append(out, fragment{heading: heading, text: t})
		}
	}

	if len(bounds) == 0 {
		add("", src)
		return out
	}
	add("", src[:bounds[0].offset])
	for i, b := range bounds {
		end := len(src)
		if i+1 < len(bounds) {
			end = bounds[i+1].offset
		}
		add(b.heading, src[b.offset:end])
	}
	return out
}

func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	return bytes.LastIndexByte(src[:pos], '\n') + 1
}

func length(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

package chunker

import (
	"strings"
	"testing"

	"github.com/Osyna/QuestionAir/internal/domain"
)

func para(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func TestSplit_OneChunkPerLongSection(t *testing.T) {
	doc := "# Stockage\n\n" + para("objet", 30) + "\n\n# Calcul\n\n" + para("instance", 30) + "\n"

	chunks, errs := New(100).Split("cloud.md", doc)

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Heading != "Stockage" || chunks[1].Heading != "Calcul" {
		t.Errorf("unexpected headings %q, %q", chunks[0].Heading, chunks[1].Heading)
	}
	if !strings.HasPrefix(chunks[1].Text, "# Calcul") {
		t.Errorf("chunk should keep its heading line, got %q", chunks[1].Text[:20])
	}
	for i, c := range chunks {
		if c.Index != i || c.SourceID != "cloud.md" || !c.MinLengthSatisfied {
			t.Errorf("chunk %d has unexpected metadata: %+v", i, c)
		}
	}
	if chunks[1].ID() != "cloud.md#1" {
		t.Errorf("ID() = %q", chunks[1].ID())
	}
}

func TestSplit_MergesShortFragmentsForward(t *testing.T) {
	doc := strings.Join([]string{
		"# Intro",
		"court",
		"## Détail",
		"encore court",
		"## Corps",
		para("contenu", 40),
	}, "\n\n")

	chunks, errs := New(100).Split("doc.md", doc)

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected the short sections to merge into one chunk, got %d", len(chunks))
	}
	if chunks[0].Heading != "Intro" {
		t.Errorf("merged chunk should keep the first heading, got %q", chunks[0].Heading)
	}
	for _, want := range []string{"court", "encore court", "contenu"} {
		if !strings.Contains(chunks[0].Text, want) {
			t.Errorf("merged chunk lost %q", want)
		}
	}
}

func TestSplit_TrailingShortFragmentIsFlagged(t *testing.T) {
	doc := "# Long\n\n" + para("texte", 40) + "\n\n# Fin\n\nmerci"

	chunks, errs := New(100).Split("doc.md", doc)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !chunks[0].MinLengthSatisfied {
		t.Error("first chunk should be eligible")
	}
	if chunks[1].MinLengthSatisfied {
		t.Error("trailing short chunk must not be eligible")
	}
	if len(errs) != 1 || errs[0].Code != domain.ErrChunkTooShort {
		t.Fatalf("expected one CHUNK_TOO_SHORT error, got %v", errs)
	}
	if errs[0].Context["chunk_id"] != "doc.md#1" {
		t.Errorf("error should name the chunk, got %v", errs[0].Context)
	}
}

func TestSplit_HeadingInsideCodeBlockIsNotABoundary(t *testing.T) {
	doc := "# Bash\n\n" + para("commande", 20) + "\n\n```sh\n# not a heading\necho ok\n```\n\n" + para("suite", 20)

	chunks, _ := New(50).Split("doc.md", doc)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "# not a heading") {
		t.Error("code block content should stay inside the chunk")
	}
}

func TestSplit_PreambleAndSetextHeadings(t *testing.T) {
	doc := para("préambule", 20) + "\n\nRéseau\n======\n\n" + para("paquet", 20) + "\r\n"

	chunks, errs := New(50).Split("doc.md", doc)

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected preamble and section, got %d chunks", len(chunks))
	}
	if chunks[0].Heading != "" || chunks[1].Heading != "Réseau" {
		t.Errorf("unexpected headings %q, %q", chunks[0].Heading, chunks[1].Heading)
	}
}

func TestSplit_ShortDocument(t *testing.T) {
	chunks, errs := New(200).Split("tiny.md", "# Titre\n\npeu de contenu")

	if len(chunks) != 1 || chunks[0].MinLengthSatisfied {
		t.Fatalf("expected one ineligible chunk, got %+v", chunks)
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %d", len(errs))
	}
}

func TestSplit_EmptyDocument(t *testing.T) {
	chunks, errs := New(200).Split("empty.md", "  \n\n ")
	if len(chunks) != 0 || len(errs) != 0 {
		t.Errorf("expected nothing for a blank document, got %v %v", chunks, errs)
	}
}

func TestSplit_IsDeterministic(t *testing.T) {
	doc := "# A\n\n" + para("alpha", 30) + "\n\n# B\n\n" + para("beta", 5) + "\n\n# C\n\n" + para("gamma", 30)
	c := New(100)
	first, _ := c.Split("doc.md", doc)
	second, _ := c.Split("doc.md", doc)
	if len(first) != len(second) {
		t.Fatal("chunk count differs between runs")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

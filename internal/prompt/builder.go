package prompt

import (
	"sort"
	"strings"

	"github.com/Osyna/QuestionAir/internal/domain"
)

// MaxSuggestedKeywords caps the vocabulary hint added to a prompt.
const MaxSuggestedKeywords = 10

// RowGrammar is the row format the model must follow, placeholders included.
const RowGrammar = `| $SUBJECT | [$KW1,$KW2,$KW3] | $ID | $QUESTION | "QCM" | {"A":"...",...} | ["$LETTER"] |`

// Instructions is the fixed generation contract sent ahead of every chunk.
// The row grammar is parsed by internal/parser; change both together.
const Instructions = `Tu es un générateur de questionnaires à choix multiples (QCM) pour des étudiants.
À partir du contenu fourni, rédige exactement 5 questions en français.

Réponds UNIQUEMENT avec 5 lignes, une par question, au format exact suivant :
` + RowGrammar + `

Règles strictes :
1. Exactement 5 lignes, identifiants Q1, Q2, Q3, Q4 et Q5, chacun une seule fois.
2. $SUBJECT : le thème général du contenu, deux mots au maximum.
3. $KW1,$KW2,$KW3 : exactement 3 mots-clés entre crochets, séparés par des virgules, sans espace ni guillemets.
4. La cinquième colonne est toujours "QCM", avec les guillemets.
5. Les choix forment un objet JSON valide : guillemets doubles uniquement, clés A, B, C ou D en majuscule, pas de virgule finale.
6. $LETTER : la lettre de l'unique bonne réponse, dans un tableau JSON, par exemple ["B"].
7. N'utilise jamais le caractère | à l'intérieur d'une colonne.
8. Pas de markdown, pas de ligne d'en-tête, pas de commentaire avant ou après les lignes.

Exemple :
| Cloud | [aws,stockage,s3] | Q1 | Quel service AWS permet le stockage d'objets ? | "QCM" | {"A":"S3","B":"EC2","C":"RDS","D":"Lambda"} | ["A"] |`

// Builder renders completion prompts.
type Builder struct {
	instructions string
}

// NewBuilder returns a Builder using the standard instructions.
func NewBuilder() *Builder {
	return &Builder{instructions: Instructions}
}

// Build renders the prompt for one chunk. vocabulary is the list of
// canonical keywords already stored; those that occur in the chunk text are
// suggested to the model so it reuses them.
func (b *Builder) Build(chunk domain.ContentChunk, vocabulary []string) string {
	var sb strings.Builder
	sb.WriteString(b.instructions)
	sb.WriteString("\n\n")

	if chunk.Heading != "" {
		sb.WriteString("Section : ")
		sb.WriteString(chunk.Heading)
		sb.WriteString("\n")
	}
	if suggested := SuggestKeywords(chunk.Text, vocabulary); len(suggested) > 0 {
		sb.WriteString("Mots-clés suggérés : ")
		sb.WriteString(strings.Join(suggested, ","))
		sb.WriteString("\n")
	}

	sb.WriteString("\nContenu :\n")
	sb.WriteString(chunk.Text)
	sb.WriteString("\n")
	return sb.String()
}

// SuggestKeywords returns the vocabulary entries found in text,
// case-insensitively, sorted and capped.
func SuggestKeywords(text string, vocabulary []string) []string {
	if len(vocabulary) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	seen := make(map[string]struct{})
	var out []string
	for _, kw := range vocabulary {
		k := strings.TrimSpace(kw)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Strings(out)
	if len(out) > MaxSuggestedKeywords {
		out = out[:MaxSuggestedKeywords]
	}
	return out
}

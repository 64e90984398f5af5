package keyword

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Osyna/QuestionAir/internal/util"
	"go.uber.org/zap"
)

// DefaultSimilarityThreshold merges near-synonyms and morphological variants.
const DefaultSimilarityThreshold = 0.85

// Cluster is a group of keywords judged equivalent.
type Cluster struct {
	Canonical string
	Members   []string
	Frequency int
}

// Result maps every input keyword to its canonical label.
type Result struct {
	Mapping  map[string]string
	Clusters []Cluster
	// Degraded is set when embeddings were unavailable and the identity
	// mapping was returned.
	Degraded bool
}

// Canonicalize maps keywords through the result, dropping repeats and
// keeping first-seen order. Unknown keywords map to themselves.
func (r *Result) Canonicalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		c, ok := r.Mapping[kw]
		if !ok {
			c = kw
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Normalizer clusters keywords by embedding similarity.
type Normalizer struct {
	cache     *EmbeddingCache
	threshold float64
	logger    *zap.Logger
}

func NewNormalizer(cache *EmbeddingCache, threshold float64, logger *zap.Logger) *Normalizer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{cache: cache, threshold: threshold, logger: logger}
}

// Normalize takes keyword → occurrence count for one subject and unions
// every pair whose cosine similarity reaches the threshold. The canonical
// label of a cluster is its most frequent member, then the shortest, then
// the lexically smallest, so normalizing an already-canonical set returns it
// unchanged. When embeddings cannot be computed the identity mapping is
// returned with Degraded set; normalization never blocks persistence.
func (n *Normalizer) Normalize(ctx context.Context, frequencies map[string]int) *Result {
	keywords := make([]string, 0, len(frequencies))
	for kw := range frequencies {
		if strings.TrimSpace(kw) != "" {
			keywords = append(keywords, kw)
		}
	}
	sort.Strings(keywords)

	vectors := make([][]float32, len(keywords))
	for i, kw := range keywords {
		vec, err := n.cache.Get(ctx, kw)
		if err != nil {
			n.logger.Warn("Embedding unavailable, keeping raw keywords",
				zap.String("keyword", kw),
				zap.Error(err))
			return identity(keywords, frequencies)
		}
		vectors[i] = vec
	}

	uf := newUnionFind(len(keywords))
	for i := 0; i < len(keywords); i++ {
		for j := i + 1; j < len(keywords); j++ {
			sim, err := util.CosineSimilarity(vectors[i], vectors[j])
			if err != nil {
				n.logger.Warn("Cannot compare keyword embeddings, keeping raw keywords",
					zap.String("left", keywords[i]),
					zap.String("right", keywords[j]),
					zap.Error(err))
				return identity(keywords, frequencies)
			}
			if sim >= n.threshold {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]string)
	for i, kw := range keywords {
		root := uf.find(i)
		groups[root] = append(groups[root], kw)
	}

	res := &Result{Mapping: make(map[string]string, len(keywords))}
	for _, members := range groups {
		cluster := Cluster{Members: members, Canonical: pickCanonical(members, frequencies)}
		for _, m := range members {
			cluster.Frequency += frequencies[m]
			res.Mapping[m] = cluster.Canonical
		}
		res.Clusters = append(res.Clusters, cluster)
	}
	sort.Slice(res.Clusters, func(i, j int) bool {
		return res.Clusters[i].Canonical < res.Clusters[j].Canonical
	})

	n.logger.Debug("Keywords normalized",
		zap.Int("keywords", len(keywords)),
		zap.Int("clusters", len(res.Clusters)))
	return res
}

func pickCanonical(members []string, frequencies map[string]int) string {
	best := members[0]
	for _, m := range members[1:] {
		if better(m, best, frequencies) {
			best = m
		}
	}
	return best
}

func better(a, b string, frequencies map[string]int) bool {
	if frequencies[a] != frequencies[b] {
		return frequencies[a] > frequencies[b]
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

func identity(keywords []string, frequencies map[string]int) *Result {
	res := &Result{Mapping: make(map[string]string, len(keywords)), Degraded: true}
	for _, kw := range keywords {
		res.Mapping[kw] = kw
		res.Clusters = append(res.Clusters, Cluster{Canonical: kw, Members: []string{kw}, Frequency: frequencies[kw]})
	}
	return res
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

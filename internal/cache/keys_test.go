package cache

import (
	"strings"
	"testing"
)

func TestGenerateCacheKey(t *testing.T) {
	tests := []struct {
		name        string
		serviceName string
		objectType  string
		identifier  string
		paramsKey   []string
		expectedKey string
	}{
		{
			name:        "without paramsKey",
			serviceName: "quiz",
			objectType:  "list",
			identifier:  "subjects",
			expectedKey: "questionair:quiz:list:subjects",
		},
		{
			name:        "with empty paramsKey",
			serviceName: "quiz",
			objectType:  "list",
			identifier:  "subjects",
			paramsKey:   []string{},
			expectedKey: "questionair:quiz:list:subjects",
		},
		{
			name:        "with multiple paramsKey",
			serviceName: "embedding",
			objectType:  "ollama",
			identifier:  "abc",
			paramsKey:   []string{"nomic", "v1"},
			expectedKey: "questionair:embedding:ollama:abc:nomic_v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateCacheKey(tt.serviceName, tt.objectType, tt.identifier, tt.paramsKey...); got != tt.expectedKey {
				t.Errorf("GenerateCacheKey() = %v, want %v", got, tt.expectedKey)
			}
		})
	}
}

func TestEmbeddingKey(t *testing.T) {
	a := EmbeddingKey("ollama", "nomic-embed-text", "kubernetes")
	b := EmbeddingKey("ollama", "nomic-embed-text", "kubernetes")
	c := EmbeddingKey("openai", "nomic-embed-text", "kubernetes")

	if a != b {
		t.Error("same input must give the same key")
	}
	if a == c {
		t.Error("provider must be part of the key")
	}
	if !strings.HasPrefix(a, "questionair:embedding:ollama:") || !strings.HasSuffix(a, ":nomic-embed-text") {
		t.Errorf("unexpected key layout %q", a)
	}
	if strings.Contains(a, "kubernetes") {
		t.Error("raw text must be hashed")
	}
}

func TestReadKeys(t *testing.T) {
	keys := ReadKeys()
	if len(keys) != 3 {
		t.Fatalf("expected 3 read keys, got %d", len(keys))
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, GlobalKeyPrefix+":quiz:") {
			t.Errorf("unexpected key %q", k)
		}
	}
}

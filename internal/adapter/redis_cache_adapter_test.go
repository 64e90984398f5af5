package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Osyna/QuestionAir/internal/cache"
	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheAdapter_GetEmbedding(t *testing.T) {
	key := cache.EmbeddingKey("ollama", "nomic-embed-text", "kubernetes")

	tests := []struct {
		name    string
		setup   func(mock redismock.ClientMock)
		want    string
		wantErr error
	}{
		{
			name:  "hit",
			setup: func(mock redismock.ClientMock) { mock.ExpectGet(key).SetVal("\x0c\xff\x83") },
			want:  "\x0c\xff\x83",
		},
		{
			name:    "miss maps to ErrCacheMiss",
			setup:   func(mock redismock.ClientMock) { mock.ExpectGet(key).SetErr(redis.Nil) },
			wantErr: domain.ErrCacheMiss,
		},
		{
			name:    "connection error passes through",
			setup:   func(mock redismock.ClientMock) { mock.ExpectGet(key).SetErr(errConnRefused) },
			wantErr: errConnRefused,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			tt.setup(mock)

			got, err := NewRedisCacheAdapter(client).Get(context.Background(), key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func TestRedisCacheAdapter_SetStats(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheAdapter(client)
	payload := `{"total_questions":5,"total_subjects":1}`

	mock.ExpectSet(cache.StatsKey, payload, time.Minute).SetVal("OK")
	require.NoError(t, c.Set(context.Background(), cache.StatsKey, payload, time.Minute))

	mock.ExpectSet(cache.StatsKey, payload, time.Minute).SetErr(errors.New("READONLY You can't write against a read only replica."))
	assert.Error(t, c.Set(context.Background(), cache.StatsKey, payload, time.Minute))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheAdapter_DeleteReadKeys(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheAdapter(client)
	ctx := context.Background()

	mock.ExpectDel(cache.ReadKeys()...).SetVal(2)
	require.NoError(t, c.Delete(ctx, cache.ReadKeys()...))

	// nothing to send
	require.NoError(t, c.Delete(ctx))

	mock.ExpectDel(cache.SubjectsKey).SetErr(errConnRefused)
	assert.ErrorIs(t, c.Delete(ctx, cache.SubjectsKey), errConnRefused)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheAdapter_Ping(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheAdapter(client)

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, c.Ping(context.Background()))

	mock.ExpectPing().SetErr(errConnRefused)
	assert.ErrorIs(t, c.Ping(context.Background()), errConnRefused)

	assert.NoError(t, mock.ExpectationsWereMet())
}

package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestClient_Encode(t *testing.T) {
	t.Run("BatchesPreserveOrder", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			var req encodeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			vectors := make([][]float32, len(req.Texts))
			for i, text := range req.Texts {
				vectors[i] = []float32{float32(len(text)), 0, 0}
			}
			_ = json.NewEncoder(w).Encode(encodeResponse{Vectors: vectors, ModelVersion: "minilm-v2"})
		}))
		defer srv.Close()

		client := NewClient(Config{URL: srv.URL, Model: "minilm", BatchSize: 2}, testLogger())
		vectors, err := client.Encode(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
		require.NoError(t, err)
		require.Len(t, vectors, 5)
		for i, want := range []float32{1, 2, 3, 4, 5} {
			assert.Equal(t, want, vectors[i][0])
		}
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, "minilm-v2", client.ModelVersion())
	})

	t.Run("ConcurrentRunsShareOneClient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req encodeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			vectors := make([][]float32, len(req.Texts))
			for i := range vectors {
				vectors[i] = []float32{1}
			}
			_ = json.NewEncoder(w).Encode(encodeResponse{Vectors: vectors, ModelVersion: "minilm-v2"})
		}))
		defer srv.Close()

		client := NewClient(Config{URL: srv.URL, Model: "minilm"}, testLogger())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := client.Encode(context.Background(), []string{"a", "b"})
				assert.NoError(t, err)
				v := client.ModelVersion()
				assert.Contains(t, []string{"minilm", "minilm-v2"}, v)
			}()
		}
		wg.Wait()
		assert.Equal(t, "minilm-v2", client.ModelVersion())
	})

	t.Run("RetriesThenSucceeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(encodeResponse{Vectors: [][]float32{{1}}, ModelVersion: "v1"})
		}))
		defer srv.Close()

		client := NewClient(Config{URL: srv.URL, MaxAttempts: 2}, testLogger())
		vectors, err := client.Encode(context.Background(), []string{"x"})
		require.NoError(t, err)
		assert.Len(t, vectors, 1)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("ExhaustedRetriesAttributeCause", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewClient(Config{URL: srv.URL, MaxAttempts: 2, Timeout: time.Second}, testLogger())
		_, err := client.Encode(context.Background(), []string{"x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding service unavailable after 2 attempts")
	})

	t.Run("VectorCountMismatchFails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(encodeResponse{Vectors: [][]float32{}, ModelVersion: "v1"})
		}))
		defer srv.Close()

		client := NewClient(Config{URL: srv.URL}, testLogger())
		_, err := client.Encode(context.Background(), []string{"x", "y"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "0 vectors for 2 texts")
	})
}

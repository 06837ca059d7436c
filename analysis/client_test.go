package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-sentiment-demo/backend/pkg/logger"
	"chat-sentiment-demo/backend/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*InferenceClient, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewInferenceClient(
		logger.New(logger.Config{Level: "error"}),
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)
	return client, server
}

func TestClassify_ParsesNestedResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "love it", payload["inputs"])

		json.NewEncoder(w).Encode([][]LabelScore{{
			{Label: "positive", Score: 0.95},
			{Label: "neutral", Score: 0.04},
			{Label: "negative", Score: 0.01},
		}})
	})

	scores, err := client.Classify(context.Background(), "some/model", "love it")
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, "positive", scores[0].Label)
	assert.InDelta(t, 0.95, scores[0].Score, 1e-9)
}

func TestClassify_CachesByText(t *testing.T) {
	hits := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode([][]LabelScore{{{Label: "neutral", Score: 0.8}}})
	})

	_, err := client.Classify(context.Background(), "some/model", "hello")
	require.NoError(t, err)
	_, err = client.Classify(context.Background(), "some/model", "hello")
	require.NoError(t, err)

	assert.Equal(t, 1, hits)

	// A different text misses the cache
	_, err = client.Classify(context.Background(), "some/model", "goodbye")
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
}

func TestClassify_DifferentModelsCacheSeparately(t *testing.T) {
	hits := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode([][]LabelScore{{{Label: "neutral", Score: 0.8}}})
	})

	_, err := client.Classify(context.Background(), "model/a", "hello")
	require.NoError(t, err)
	_, err = client.Classify(context.Background(), "model/b", "hello")
	require.NoError(t, err)

	assert.Equal(t, 2, hits)
}

func TestClassify_UpstreamErrorFails(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	})

	_, err := client.Classify(context.Background(), "some/model", "hello")
	assert.Error(t, err)
}

func TestClassify_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	// Distinct texts avoid the cache; the breaker opens after five failures
	texts := []string{"a", "b", "c", "d", "e"}
	for _, text := range texts {
		_, err := client.Classify(context.Background(), "some/model", text)
		require.Error(t, err)
	}

	_, err := client.Classify(context.Background(), "some/model", "f")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"a", "b"}, req.Input)
		require.Equal(t, "tiny", req.Model)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"tiny","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder("key", srv.URL, "tiny")
	require.NoError(t, err)
	require.Equal(t, "tiny", emb.Model())

	vectors, err := emb.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

func TestOpenAIEmbedderMissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder("key", srv.URL, "tiny")
	require.NoError(t, err)

	_, err = emb.EmbedBatch(context.Background(), []string{"a", "b"})
	require.ErrorContains(t, err, "missing embedding for input 1")
}

func TestOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "", "")
	require.Error(t, err)
}

package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAICriticReturnsRawCritique(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini-2024-07-18",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "CRITERION SCORES\nplot: 70"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	critic, err := NewOpenAICritic(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	critique, err := critic.Critique(context.Background(), CritiqueRequest{
		ManuscriptTitle:  "The Lantern Keeper",
		Synopsis:         "A keeper of lanterns.",
		WordCount:        80000,
		Genre:            "fantasy",
		WeightedCriteria: map[string]int{"plot": 100},
	})
	require.NoError(t, err)
	require.Equal(t, "CRITERION SCORES\nplot: 70", critique.Text)
	require.Equal(t, "gpt-4o-mini-2024-07-18", critique.ModelVersion)
	require.Equal(t, "gpt-4o-mini", captured["model"])

	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]interface{})["content"].(string)
	require.Contains(t, user, "The Lantern Keeper")
	require.Contains(t, user, "plot (weight 100%)")
}

func TestOpenAICriticFailsOnEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "model": "m", "choices": []}`))
	}))
	defer server.Close()

	critic, err := NewOpenAICritic(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	_, err = critic.Critique(context.Background(), CritiqueRequest{ManuscriptTitle: "x"})
	require.Error(t, err)
}

func TestNewOpenAICriticRequiresKey(t *testing.T) {
	_, err := NewOpenAICritic(OpenAIConfig{})
	require.Error(t, err)
}

package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/payload"
	"github.com/robalobadob/minigames/internal/quiz"
)

// fakeAPI answers chat completions: metadata prompts get meta, everything else
// gets content. Prompts are recorded.
type fakeAPI struct {
	content string
	meta    string
	status  int
	prompts []string
	temps   []float32
}

func (f *fakeAPI) handler(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	prompt := req.Messages[0].Content
	f.prompts = append(f.prompts, prompt)
	f.temps = append(f.temps, req.Temperature)

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "server_error", "message": "nope"},
		})
		return
	}
	answer := f.content
	if strings.Contains(prompt, "school subject") {
		answer = f.meta
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": answer},
			"finish_reason": "stop",
		}},
	})
}

func newTestGenerator(t *testing.T, f *fakeAPI) *Generator {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)

	g, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	return g
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrDisabled)

	g, err := New(Config{APIKey: "k", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", g.Model())
}

func TestGame_Quiz(t *testing.T) {
	f := &fakeAPI{
		content: "```json\n" + `{"levels":[{"question":"2+2?","choices":["3","4"],"correct":1}]}` + "\n```",
		meta:    `{"title":"Laskupeli","subject":"Matematiikka"}`,
	}
	g := newTestGenerator(t, f)

	res, err := g.Game(context.Background(), Request{Kind: game.KindQuiz, Topic: " yhteenlasku ", Difficulty: "hard"})
	require.NoError(t, err)
	assert.Equal(t, game.KindQuiz, res.Game.Kind)
	assert.Equal(t, quiz.Hard, res.Game.Difficulty)
	assert.Equal(t, "Laskupeli", res.Game.Title)
	assert.Equal(t, Metadata{Title: "Laskupeli", Subject: "Matematiikka"}, res.Meta)

	require.Len(t, f.prompts, 2)
	assert.Contains(t, f.prompts[0], "EXACTLY 15 multiple-choice")
	// content is asked for near-deterministically; a plain 0 would be dropped
	assert.Greater(t, f.temps[0], float32(0))
	assert.Less(t, f.temps[0], float32(0.01))
	assert.InDelta(t, 0.7, f.temps[1], 1e-6)
	assert.Contains(t, f.prompts[0], `"yhteenlasku"`)

	again, err := payload.Parse(res.Payload)
	require.NoError(t, err)
	assert.Equal(t, res.Game.Questions, again.Questions)
	assert.Equal(t, "Laskupeli", again.Title)
}

func TestGame_UnknownDifficultyUsesMedium(t *testing.T) {
	f := &fakeAPI{
		content: `{"levels":[{"question":"q","choices":["a","b"],"correct":0}]}`,
		meta:    `{"title":"T","subject":"Historia"}`,
	}
	g := newTestGenerator(t, f)

	res, err := g.Game(context.Background(), Request{Kind: game.KindQuiz, Topic: "t", Difficulty: "extreme"})
	require.NoError(t, err)
	assert.Equal(t, quiz.Medium, res.Game.Difficulty)
	assert.Contains(t, f.prompts[0], "EXACTLY 10 multiple-choice")
}

func TestGame_HangmanAndMemory(t *testing.T) {
	f := &fakeAPI{
		content: `{"words":["kissa","Koira"]}`,
		meta:    `{"title":"Eläimet","subject":"Biologia"}`,
	}
	g := newTestGenerator(t, f)

	res, err := g.Game(context.Background(), Request{Kind: game.KindHangman, Topic: "eläimet"})
	require.NoError(t, err)
	assert.Equal(t, []string{"KISSA", "KOIRA"}, res.Game.Words)
	assert.Equal(t, "eläimet", res.Game.Topic)
	assert.Equal(t, DefaultSubject, res.Meta.Subject, "unlisted subject falls back")
	assert.Contains(t, f.prompts[0], "EXACTLY 30 Finnish words")

	f.content = `{"pairs":[{"question":"kissa","answer":"cat"},["koira","dog"]]}`
	res, err = g.Game(context.Background(), Request{Kind: game.KindMemory, Topic: "sanat"})
	require.NoError(t, err)
	require.Len(t, res.Game.Pairs, 2)
	assert.Equal(t, "dog", res.Game.Pairs[1].Back)
}

func TestGame_Rejects(t *testing.T) {
	f := &fakeAPI{content: `{"pairs":[["a","b"]]}`, meta: `{}`}
	g := newTestGenerator(t, f)
	ctx := context.Background()

	_, err := g.Game(ctx, Request{Kind: game.KindQuiz, Topic: "  "})
	assert.ErrorIs(t, err, ErrEmptyTopic)

	_, err = g.Game(ctx, Request{Kind: "chess", Topic: "t"})
	assert.ErrorIs(t, err, payload.ErrUnknownKind)

	_, err = g.Game(ctx, Request{Kind: game.KindQuiz, Topic: "t"})
	assert.ErrorIs(t, err, ErrBadResponse, "kind mismatch")

	f.content = `{"levels":[{"question":"q","choices":["a"],"correct":0}]}`
	_, err = g.Game(ctx, Request{Kind: game.KindQuiz, Topic: "t"})
	assert.ErrorIs(t, err, ErrBadResponse, "invalid payload")

	f.content = `not json`
	_, err = g.Game(ctx, Request{Kind: game.KindQuiz, Topic: "t"})
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestGame_ProviderErrors(t *testing.T) {
	f := &fakeAPI{status: http.StatusTooManyRequests}
	g := newTestGenerator(t, f)

	_, err := g.Game(context.Background(), Request{Kind: game.KindMemory, Topic: "t"})
	assert.ErrorIs(t, err, ErrRateLimited)

	f.status = http.StatusBadGateway
	_, err = g.Game(context.Background(), Request{Kind: game.KindMemory, Topic: "t"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMetadata_Fallback(t *testing.T) {
	f := &fakeAPI{status: http.StatusInternalServerError}
	g := newTestGenerator(t, f)

	m := g.Metadata(context.Background(), game.KindHangman, strings.Repeat("x", 60))
	assert.Equal(t, DefaultSubject, m.Subject)
	assert.Equal(t, "Hangman: "+strings.Repeat("x", 40), m.Title)
}

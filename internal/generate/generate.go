// internal/generate/generate.go
//
// Game content generation with an OpenAI-compatible chat API.
// Responsibilities:
//   - Build the content prompt for a kind (quiz length from the difficulty table,
//     30 hangman words, 10 memory pairs) and request a JSON object back.
//   - Run every answer through payload.Parse; nothing unvalidated leaves here.
//   - Ask for a title and school subject; fall back to a plain title and the
//     default subject when that call fails.

package generate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/payload"
	"github.com/robalobadob/minigames/internal/quiz"
)

var (
	ErrDisabled    = errors.New("generate: no API key configured")
	ErrEmptyTopic  = errors.New("generate: topic is required")
	ErrBadResponse = errors.New("generate: unusable model response")
	ErrRateLimited = errors.New("generate: rate limited")
	ErrUnavailable = errors.New("generate: provider unavailable")
)

const (
	HangmanWords = 30
	MemoryPairs  = 10

	// DefaultSubject is used when the model picks no listed subject.
	DefaultSubject = "Ympäristöoppi"
	maxTitleRunes  = 40
)

// Subjects are the school subjects a generated game can be filed under.
var Subjects = []string{
	"Äidinkieli ja kirjallisuus",
	"Matematiikka",
	"Ympäristöoppi",
	"Ruotsi",
	"Englanti",
	"Fysiikka",
	"Kemia",
	"Maantieto",
	"Kotitalous",
	"Terveystieto",
	"Liikunta",
	"Musiikki",
	"Kuvataide",
	"Käsityö",
	"Uskonto tai elämänkatsomustieto",
	"Historia",
	"Yhteiskuntaoppi",
}

// deterministic is the lowest temperature the API accepts; a zero
// Temperature is omitted from the request and means the provider default.
const deterministic = math.SmallestNonzeroFloat32

// Config selects the endpoint and model. BaseURL is optional and allows
// OpenAI-compatible providers.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Request describes the game to generate.
type Request struct {
	Kind       game.Kind       `json:"kind"`
	Topic      string          `json:"topic"`
	Difficulty quiz.Difficulty `json:"difficulty,omitempty"`
}

// Metadata is the title and subject of a generated game.
type Metadata struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
}

// Result is a validated generated game.
type Result struct {
	Game    *payload.Game `json:"-"`
	Payload []byte        `json:"-"`
	Meta    Metadata      `json:"meta"`
}

type Generator struct {
	client  *openai.Client
	model   string
	lengths quiz.Config
}

// New returns a generator, or ErrDisabled without an API key.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &Generator{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		lengths: quiz.DefaultConfig(),
	}, nil
}

// Model returns the model ID requests are sent to.
func (g *Generator) Model() string { return g.model }

// Game generates and validates the content of one game.
func (g *Generator) Game(ctx context.Context, req Request) (*Result, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return nil, ErrEmptyTopic
	}
	if !req.Kind.Valid() {
		return nil, payload.ErrUnknownKind
	}
	if req.Kind == game.KindQuiz {
		req.Difficulty = g.lengths.Resolve(req.Difficulty)
	}

	content, err := g.complete(ctx, contentPrompt(req, g.lengths), deterministic)
	if err != nil {
		return nil, err
	}
	parsed, err := payload.Parse([]byte(stripFence(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if parsed.Kind != req.Kind {
		return nil, fmt.Errorf("%w: asked for %s, got %s", ErrBadResponse, req.Kind, parsed.Kind)
	}
	if parsed.Kind == game.KindQuiz && parsed.Difficulty == "" {
		parsed.Difficulty = req.Difficulty
	}
	if parsed.Kind == game.KindHangman && parsed.Topic == "" {
		parsed.Topic = req.Topic
	}

	meta := g.Metadata(ctx, req.Kind, req.Topic)
	parsed.Title = meta.Title

	raw, err := payload.Encode(parsed)
	if err != nil {
		return nil, err
	}
	return &Result{Game: parsed, Payload: raw, Meta: meta}, nil
}

// Metadata asks for a title and subject. It never fails: on any error it returns
// "<Kind>: <topic>" filed under DefaultSubject.
func (g *Generator) Metadata(ctx context.Context, kind game.Kind, topic string) Metadata {
	fallback := Metadata{Title: fallbackTitle(kind, topic), Subject: DefaultSubject}

	content, err := g.complete(ctx, metadataPrompt(kind, topic), 0.7)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("generate metadata failed")
		return fallback
	}
	var m Metadata
	if err := decodeObject(content, &m); err != nil {
		log.Warn().Err(err).Msg("generate metadata: bad response")
		return fallback
	}
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		m.Title = fallback.Title
	}
	if !validSubject(m.Subject) {
		m.Subject = DefaultSubject
	}
	return m
}

func (g *Generator) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrBadResponse)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty content", ErrBadResponse)
	}
	return content, nil
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func validSubject(s string) bool {
	for _, v := range Subjects {
		if v == s {
			return true
		}
	}
	return false
}

func fallbackTitle(kind game.Kind, topic string) string {
	name := string(kind)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	r := []rune(strings.TrimSpace(topic))
	if len(r) > maxTitleRunes {
		r = r[:maxTitleRunes]
	}
	return name + ": " + string(r)
}

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-1.5-flash-latest"

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini calls the Gemini API once per Analyze, with no retry.
type Gemini struct {
	models  generator
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, log zerolog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newGemini(client.Models, model, timeout, log), nil
}

func newGemini(models generator, model string, timeout time.Duration, log zerolog.Logger) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		models:  models,
		model:   model,
		timeout: timeout,
		log:     log.With().Str("component", "gemini").Str("model", model).Logger(),
	}
}

// Analyze sends prompt and returns the generated text. The client can panic
// while decoding some non-2xx bodies; that is reported as a malformed
// response instead of unwinding the caller.
func (g *Gemini) Analyze(ctx context.Context, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error().Interface("panic", r).Msg("generate content panicked")
			text, err = "", &ProviderError{Provider: "gemini", Kind: KindMalformed, Err: fmt.Errorf("unreadable provider response: %v", r)}
		}
	}()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		pe := g.wrap(err)
		g.log.Warn().Err(err).Str("kind", string(pe.Kind)).Dur("took", time.Since(start)).Msg("generate content failed")
		return "", pe
	}
	if resp == nil {
		return "", &ProviderError{Provider: "gemini", Kind: KindMalformed, Err: errors.New("nil response")}
	}

	text = resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &ProviderError{Provider: "gemini", Kind: KindMalformed, Err: errors.New("no text in response")}
	}

	g.log.Debug().Dur("took", time.Since(start)).Int("chars", len(text)).Msg("analysis generated")
	return text, nil
}

func (g *Gemini) wrap(err error) *ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "gemini", Kind: classify(apiErr.Code, apiErr.Status), Err: err}
	}
	return &ProviderError{Provider: "gemini", Kind: classifyErr(err), Err: err}
}

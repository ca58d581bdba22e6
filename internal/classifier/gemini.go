// Package classifier sends free-text messages to Gemini and parses the
// response into a typed intent payload.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"granabot/internal/domain"
	"granabot/internal/intent"
	"google.golang.org/genai"
)

// requestTimeout bounds a single completion call. Moderate: the completion
// service is slower than the ledger but must never hang a webhook delivery.
const requestTimeout = 30 * time.Second

// Classifier turns a message plus bounded history into an intent payload.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*intent.Payload, error)
}

// Request is one classification call.
type Request struct {
	Message string
	History []domain.Exchange
	// Today anchors relative-date extraction ("amanhã", "dia 5").
	Today time.Time
}

// Gemini implements Classifier against the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed classifier.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Classify sends the message with its bounded history and decodes the
// response. Any transport failure, non-success status or non-conforming
// response body comes back as an error; the caller mutates nothing on error.
func (g *Gemini) Classify(ctx context.Context, req Request) (*intent.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	contents := make([]*genai.Content, 0, 2*len(req.History)+1)
	for _, exchange := range req.History {
		contents = append(contents,
			genai.NewContentFromText(exchange.User, genai.RoleUser),
			genai.NewContentFromText(exchange.Assistant, genai.RoleModel),
		)
	}
	contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction(req.Today), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini returned an empty response")
	}

	payload, err := intent.Decode([]byte(text))
	if err != nil {
		slog.Warn("Gemini response failed intent decoding", "error", err, "response_length", len(text))
		return nil, err
	}
	return payload, nil
}

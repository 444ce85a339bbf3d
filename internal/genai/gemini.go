package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel    = "gemini-2.5-flash"
	defaultGeminiTimeout  = 60 * time.Second

	// Response bodies beyond this are treated as a failed call.
	maxResponseBytes = 4 << 20
)

type GeminiConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
	Logger   *zerolog.Logger
}

// Gemini calls the Gemini generateContent REST API.
type Gemini struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
	logger   zerolog.Logger
}

func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: APIKey is required", ErrInvalidConfiguration)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGeminiEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultGeminiTimeout
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Gemini{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With().Str("component", "gemini").Str("model", cfg.Model).Logger(),
	}, nil
}

func (g *Gemini) Name() string {
	return g.model
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools            []geminiTool            `json:"tools,omitempty"`
	ToolConfig       *geminiToolConfig       `json:"toolConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature      float64        `json:"temperature,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiTool struct {
	GoogleMaps *struct{} `json:"googleMaps,omitempty"`
}

type geminiToolConfig struct {
	RetrievalConfig geminiRetrievalConfig `json:"retrievalConfig"`
}

type geminiRetrievalConfig struct {
	LatLng LatLng `json:"latLng"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type geminiCandidate struct {
	Content           geminiContent            `json:"content"`
	FinishReason      string                   `json:"finishReason"`
	GroundingMetadata *geminiGroundingMetadata `json:"groundingMetadata,omitempty"`
}

type geminiGroundingMetadata struct {
	GroundingChunks []struct {
		Maps *struct {
			URI     string `json:"uri"`
			Title   string `json:"title"`
			PlaceID string `json:"placeId"`
		} `json:"maps,omitempty"`
	} `json:"groundingChunks"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	parts := make([]geminiPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: img.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	parts = append(parts, geminiPart{Text: req.Prompt})

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
	if req.Schema != nil {
		payload.GenerationConfig = &geminiGenerationConfig{
			Temperature:      0.2,
			ResponseMimeType: "application/json",
			ResponseSchema:   req.Schema,
		}
	}
	if req.Location != nil {
		payload.Tools = []geminiTool{{GoogleMaps: &struct{}{}}}
		payload.ToolConfig = &geminiToolConfig{RetrievalConfig: geminiRetrievalConfig{LatLng: *req.Location}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.endpoint, url.PathEscape(g.model), url.QueryEscape(g.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrAPICallFailed, ctxErr)
		}
		// The client drops the URL (and the key in it) from the message.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%w: %w", ErrAPICallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrAPICallFailed, err)
	}

	g.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Int("bytes", len(respBody)).
		Msg("generateContent response")

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &ParseError{Reason: "invalid response envelope", Err: err}
	}

	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, decoded.PromptFeedback.BlockReason)
	}

	if len(decoded.Candidates) == 0 {
		return nil, &ParseError{Reason: "no candidates in response"}
	}

	candidate := decoded.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return nil, fmt.Errorf("%w: finish reason %s", ErrBlocked, candidate.FinishReason)
	}

	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		text.WriteString(p.Text)
	}

	out := &Response{
		Text:         text.String(),
		FinishReason: candidate.FinishReason,
	}
	if candidate.GroundingMetadata != nil {
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk.Maps == nil {
				continue
			}
			out.Places = append(out.Places, Place{
				Title:   chunk.Maps.Title,
				URI:     chunk.Maps.URI,
				PlaceID: chunk.Maps.PlaceID,
			})
		}
	}

	return out, nil
}

func statusError(status int, body []byte) error {
	var errResp geminiErrorResponse
	msg := fmt.Sprintf("status code %d", status)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = fmt.Sprintf("%s (status: %d)", errResp.Error.Message, status)
	}

	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w: %s", ErrAPICallFailed, ErrRateLimited, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %w: %s", ErrAPICallFailed, ErrModelUnavailable, msg)
	default:
		return fmt.Errorf("%w: %s", ErrAPICallFailed, msg)
	}
}

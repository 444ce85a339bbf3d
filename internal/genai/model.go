package genai

import "context"

// Image is inline image content sent alongside a prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Request is a single generation call.
type Request struct {
	Prompt string
	Images []Image
	// Schema switches the model to JSON output constrained by this schema.
	Schema map[string]any
	// Location enables maps grounding around the given point.
	Location *LatLng
}

// Place is a maps grounding source attached to a response.
type Place struct {
	Title   string `json:"title"`
	URI     string `json:"uri"`
	PlaceID string `json:"placeId,omitempty"`
}

type Response struct {
	Text         string
	Places       []Place
	FinishReason string
}

// Model is the external generative model. Implementations must honour
// ctx cancellation and must not retry.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

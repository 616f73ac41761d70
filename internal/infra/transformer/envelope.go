package transformer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/StorefrontFeed/internal/domain"
)

const EnvelopeName = "envelope"

// EnvelopeResponse is the catalog's response format: a message and the page of cards.
type EnvelopeResponse struct {
	Message string        `json:"message"`
	Data    []ProductCard `json:"data"`
}

type EnvelopeTransformer struct{}

func NewEnvelopeTransformer() *EnvelopeTransformer {
	return &EnvelopeTransformer{}
}

func (t *EnvelopeTransformer) Transform(reader io.Reader) ([]domain.Product, error) {
	var resp EnvelopeResponse
	if err := json.NewDecoder(reader).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode envelope response: %w", err)
	}
	return normalize(resp.Data)
}

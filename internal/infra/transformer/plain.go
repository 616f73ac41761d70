package transformer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/StorefrontFeed/internal/domain"
)

const PlainName = "plain"

// PlainTransformer decodes a bare JSON array of product cards.
type PlainTransformer struct{}

func NewPlainTransformer() *PlainTransformer {
	return &PlainTransformer{}
}

func (t *PlainTransformer) Transform(reader io.Reader) ([]domain.Product, error) {
	var cards []ProductCard
	if err := json.NewDecoder(reader).Decode(&cards); err != nil {
		return nil, fmt.Errorf("failed to decode plain response: %w", err)
	}
	return normalize(cards)
}

package transformer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/StorefrontFeed/internal/domain"
)

// ProductCard is a product as the catalog lists it.
type ProductCard struct {
	ProductID   cardID `json:"productId"`
	ProductName string `json:"productName"`
	Price       int64  `json:"price"`
	ImgURL      string `json:"imgUrl"`
}

// cardID accepts both numeric and string product ids.
type cardID string

func (id *cardID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = cardID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*id = cardID(n.String())
	return nil
}

func normalize(cards []ProductCard) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(cards))
	for i, c := range cards {
		id := strings.TrimSpace(string(c.ProductID))
		if id == "" {
			return nil, fmt.Errorf("product card %d has no id", i)
		}
		products = append(products, domain.Product{
			ID:       id,
			Title:    c.ProductName,
			Price:    c.Price,
			ImageURL: c.ImgURL,
		})
	}
	return products, nil
}

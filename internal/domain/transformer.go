package domain

import "io"

// Transformer parses a raw catalog listing body into Products.
type Transformer interface {
	Transform(reader io.Reader) ([]Product, error)
}

package catalog

import (
	"context"
	"errors"
)

var (
	ErrCollectionNotFound  = errors.New("products file not found")
	ErrMalformedCollection = errors.New("unable to decode JSON data")
)

// Product is one stored record. Data is free-form and may be nil.
type Product struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

// ProductList is the envelope used on the wire for collections.
type ProductList struct {
	Products []Product `json:"products"`
}

// Store persists the whole collection. Load returns it in stored order;
// Replace overwrites it entirely.
type Store interface {
	Ping(ctx context.Context) error
	Load(ctx context.Context) ([]Product, error)
	Replace(ctx context.Context, products []Product) error
}

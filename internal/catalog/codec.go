package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const indent = "  "

// decodeCollection parses a stored array and requires every element to
// carry an id and a name, the same shape the replace endpoint accepts.
func decodeCollection(raw []byte) ([]Product, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var stored []*productInput
	if err := dec.Decode(&stored); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCollection, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after array", ErrMalformedCollection)
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: collection is null", ErrMalformedCollection)
	}

	out := make([]Product, len(stored))
	for i, in := range stored {
		if in == nil {
			return nil, fmt.Errorf("%w: element %d is null", ErrMalformedCollection, i)
		}
		if err := validate.Struct(in); err != nil {
			return nil, fmt.Errorf("%w: element %d: %s", ErrMalformedCollection, i, validationDetail(err))
		}
		out[i] = in.product()
	}
	return out, nil
}

func encodeCollection(products []Product) ([]byte, error) {
	if products == nil {
		products = []Product{}
	}
	raw, err := json.MarshalIndent(products, "", indent)
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	return raw, nil
}

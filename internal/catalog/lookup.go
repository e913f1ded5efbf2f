package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// ProductNotFoundError reports a single identifier with no stored product.
type ProductNotFoundError struct {
	ID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product with id %s not found", e.ID)
}

// MissingProductsError reports requested identifiers that matched nothing.
type MissingProductsError struct {
	IDs []string
}

func (e *MissingProductsError) Error() string {
	return fmt.Sprintf("Products with ids %s not found", formatIDSet(e.IDs))
}

// FindByID returns the first product with the given id in stored order.
func FindByID(products []Product, id string) (Product, error) {
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, &ProductNotFoundError{ID: id}
}

// FilterByIDs keeps every stored product whose id was requested, in stored
// order. Requested ids that matched nothing yield a *MissingProductsError
// listing them once each, in request order.
func FilterByIDs(products []Product, ids []string) ([]Product, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	found := make(map[string]struct{}, len(want))
	out := make([]Product, 0, len(want))
	for _, p := range products {
		if _, ok := want[p.ID]; !ok {
			continue
		}
		found[p.ID] = struct{}{}
		out = append(out, p)
	}

	if len(found) == len(want) {
		return out, nil
	}

	missing := make([]string, 0, len(want)-len(found))
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		found[id] = struct{}{}
		missing = append(missing, id)
	}
	return nil, &MissingProductsError{IDs: missing}
}

func formatIDSet(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}

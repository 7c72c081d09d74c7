package models

import (
	"fmt"
	"strconv"
	"strings"

	id "visitledger/pkg/domain"
)

// ClassID identifies an asset class in the catalog.
type ClassID uint64

func (c ClassID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// DefaultCatalogSize is the number of character classes in the collection.
const DefaultCatalogSize = 9

// IDPlaceholder is substituted with the decimal class id in URI templates.
const IDPlaceholder = "{id}"

// Catalog is the closed set of classes [0, Size). It is fixed at construction.
type Catalog struct {
	size        int
	uriTemplate string
}

// NewCatalog builds a catalog of size classes whose metadata URIs follow template.
func NewCatalog(size int, template string) (Catalog, error) {
	if size <= 0 {
		return Catalog{}, fmt.Errorf("catalog size must be positive, got %d", size)
	}
	return Catalog{size: size, uriTemplate: template}, nil
}

// DefaultCatalog is the nine-class collection.
func DefaultCatalog(template string) Catalog {
	return Catalog{size: DefaultCatalogSize, uriTemplate: template}
}

func (c Catalog) Size() int {
	return c.size
}

// Contains reports whether class is in range.
func (c Catalog) Contains(class ClassID) bool {
	return uint64(class) < uint64(c.size)
}

// Classes lists every class in ascending order.
func (c Catalog) Classes() []ClassID {
	out := make([]ClassID, c.size)
	for i := range out {
		out[i] = ClassID(i)
	}
	return out
}

// URI renders the metadata URI of class. The caller checks Contains first.
func (c Catalog) URI(class ClassID) string {
	return strings.ReplaceAll(c.uriTemplate, IDPlaceholder, class.String())
}

// Transfer is one (class, amount) pair of a batch.
type Transfer struct {
	Class  ClassID
	Amount uint64
}

// Pair zips parallel class and amount slices. Lengths are checked by the caller.
func Pair(classes []ClassID, amounts []uint64) []Transfer {
	out := make([]Transfer, len(classes))
	for i := range classes {
		out[i] = Transfer{Class: classes[i], Amount: amounts[i]}
	}
	return out
}

// Aggregate sums amounts per class, keeping first-seen order. A batch that
// names a class twice must be backed by the sum, not by each entry alone.
// Sums saturate at the uint64 maximum so an overflowing batch can never look
// affordable.
func Aggregate(transfers []Transfer) []Transfer {
	index := make(map[ClassID]int, len(transfers))
	var out []Transfer
	for _, t := range transfers {
		if i, ok := index[t.Class]; ok {
			out[i].Amount = saturatingAdd(out[i].Amount, t.Amount)
			continue
		}
		index[t.Class] = len(out)
		out = append(out, t)
	}
	return out
}

func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint64(0)
}

// Balance is one holder's amount of one class.
type Balance struct {
	Holder id.Address `json:"holder"`
	Class  ClassID    `json:"class_id"`
	Amount uint64     `json:"amount"`
}

// Package category holds the closed set of padel skill tiers and their
// canonical starting ratings.
//
// The two lookups run in opposite directions and must stay that way:
// InitialRating seeds a player from a tier, ForRating labels a rating for
// display. Rating updates never consult ForRating.
package category

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidCategory is returned for labels or values outside the enumeration.
var ErrInvalidCategory = errors.New("invalid category")

// Category is an ordinal skill tier. Higher values are stronger tiers.
type Category uint8

// Tiers, lowest to highest.
const (
	Eighth Category = iota + 1
	Seventh
	Sixth
	Fifth
	Fourth
	Third
	Second
	First
)

type tier struct {
	label  string
	rating int
}

// tiers is indexed by Category; slot 0 is the invalid zero value.
var tiers = [...]tier{
	{},
	{"8va", 1000},
	{"7ma", 1200},
	{"6ta", 1400},
	{"5ta", 1600},
	{"4ta", 1800},
	{"3ra", 2000},
	{"2da", 2200},
	{"1ra", 2400},
}

// Lowest and Highest bound the enumeration.
const (
	Lowest  = Eighth
	Highest = First
)

// All returns every category in ascending order.
func All() []Category {
	out := make([]Category, 0, len(tiers)-1)
	for c := Lowest; c <= Highest; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is one of the eight tiers.
func (c Category) Valid() bool {
	return c >= Lowest && c <= Highest
}

// String returns the tier label, e.g. "6ta".
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return tiers[c].label
}

// InitialRating returns the canonical starting rating of c.
// It is 0 for values outside the enumeration.
func InitialRating(c Category) int {
	if !c.Valid() {
		return 0
	}
	return tiers[c].rating
}

// ForRating returns the highest category whose initial rating is <= r.
// Ratings below the lowest threshold map to the lowest category.
func ForRating(r int) Category {
	// first tier strictly above r, then step back one
	i := sort.Search(int(Highest), func(i int) bool {
		return tiers[i+1].rating > r
	})
	if i == 0 {
		return Lowest
	}
	return Category(i)
}

// Parse resolves a tier label.
func Parse(label string) (Category, error) {
	for c := Lowest; c <= Highest; c++ {
		if tiers[c].label == label {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, label)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, uint8(c))
	}
	return []byte(tiers[c].label), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

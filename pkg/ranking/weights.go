package ranking

import (
	"errors"
	"fmt"
)

// ErrInvalidWeights is returned by Weights.Validate.
var ErrInvalidWeights = errors.New("invalid ranking weights")

// Signal scales a raw count by Factor and clamps the result to [0, Cap].
type Signal struct {
	Factor float64 `yaml:"factor" json:"factor"`
	Cap    float64 `yaml:"cap" json:"cap"`
}

// Recency awards up to Max points, losing DecayPerDay points per day of age.
type Recency struct {
	Max         float64 `yaml:"max" json:"max"`
	DecayPerDay float64 `yaml:"decay_per_day" json:"decay_per_day"`
}

// Weights are the product-tuning constants of the room score.
type Weights struct {
	View           Signal  `yaml:"view" json:"view"`
	Favorite       Signal  `yaml:"favorite" json:"favorite"`
	Contract       Signal  `yaml:"contract" json:"contract"`
	Recency        Recency `yaml:"recency" json:"recency"`
	AvailableBonus float64 `yaml:"available_bonus" json:"available_bonus"`
	Amenity        Signal  `yaml:"amenity" json:"amenity"`
	Furniture      Signal  `yaml:"furniture" json:"furniture"`
}

// DefaultWeights returns the weights the listing app ships with.
func DefaultWeights() Weights {
	return Weights{
		View:           Signal{Factor: 0.1, Cap: 50},
		Favorite:       Signal{Factor: 0.5, Cap: 30},
		Contract:       Signal{Factor: 0.3, Cap: 20},
		Recency:        Recency{Max: 30, DecayPerDay: 0.5},
		AvailableBonus: 10,
		Amenity:        Signal{Factor: 2, Cap: 20},
		Furniture:      Signal{Factor: 1.5, Cap: 15},
	}
}

// MaxScore is the highest score any room can reach under w.
func (w Weights) MaxScore() float64 {
	return w.View.Cap + w.Favorite.Cap + w.Contract.Cap +
		w.Recency.Max + w.AvailableBonus + w.Amenity.Cap + w.Furniture.Cap
}

// Validate rejects negative factors and caps, which would break the
// non-negative score guarantee.
func (w Weights) Validate() error {
	signals := map[string]Signal{
		"view":      w.View,
		"favorite":  w.Favorite,
		"contract":  w.Contract,
		"amenity":   w.Amenity,
		"furniture": w.Furniture,
	}
	for name, s := range signals {
		if s.Factor < 0 || s.Cap < 0 {
			return fmt.Errorf("%w: %s factor and cap must be non-negative", ErrInvalidWeights, name)
		}
	}
	if w.Recency.Max < 0 || w.Recency.DecayPerDay < 0 {
		return fmt.Errorf("%w: recency max and decay must be non-negative", ErrInvalidWeights)
	}
	if w.AvailableBonus < 0 {
		return fmt.Errorf("%w: available bonus must be non-negative", ErrInvalidWeights)
	}
	return nil
}

package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/itsneelabh/storefront/core"
)

// FormatVersion is the persisted cart envelope version.
const FormatVersion = 1

type envelope struct {
	Version int   `json:"version"`
	Items   Items `json:"items"`
}

// Encode serialises items as a versioned envelope.
func Encode(items Items) (string, error) {
	if items == nil {
		items = Items{}
	}
	data, err := json.Marshal(envelope{Version: FormatVersion, Items: items})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a persisted cart. It accepts the versioned envelope and
// the older bare JSON array. Lines that break the cart invariants (quantity
// below 1, repeated id) are dropped. An empty value is an empty cart.
func Decode(raw string) (Items, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return Items{}, nil
	}

	var items Items
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return Items{}, fmt.Errorf("decode legacy cart: %v: %w", err, core.ErrCorruptData)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return Items{}, fmt.Errorf("decode cart: %v: %w", err, core.ErrCorruptData)
		}
		if env.Version != FormatVersion {
			return Items{}, fmt.Errorf("unsupported cart version %d: %w", env.Version, core.ErrCorruptData)
		}
		items = env.Items
	default:
		return Items{}, fmt.Errorf("cart is neither a list nor an object: %w", core.ErrCorruptData)
	}

	return sanitize(items), nil
}

func sanitize(items Items) Items {
	out := make(Items, 0, len(items))
	seen := make(map[int]bool, len(items))
	for _, it := range items {
		if it.Quantity < 1 || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}

package cart

import (
	"encoding/json"
	"strings"

	"github.com/achlys/whimsical-backend/internal/app/model"
)

// Encode serializes lines as the JSON array stored under the snapshot key.
// An empty cart encodes as "[]".
func Encode(lines []model.CartLine) (string, error) {
	if lines == nil {
		lines = []model.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a stored snapshot. Lines without an id or with a quantity
// below one are dropped, and repeated ids keep their first occurrence.
func Decode(payload string) ([]model.CartLine, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, nil
	}

	var raw []model.CartLine
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}

	lines := make([]model.CartLine, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, l := range raw {
		id := l.ProductID.String()
		if id == "" || l.Quantity < 1 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		l.ProductID = model.ProductID(id)
		lines = append(lines, l)
	}
	return lines, nil
}

package cqrs

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Changes returns the JSON merge patch turning prev into next. A nil prev
// yields the full document. Nil is returned when nothing changed.
func Changes(prev, next []byte) (map[string]interface{}, error) {
	if len(prev) == 0 {
		prev = []byte("{}")
	}

	patch, err := jsonpatch.CreateMergePatch(prev, next)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge patch: %w", err)
	}

	var changes map[string]interface{}
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("failed to decode merge patch: %w", err)
	}
	if len(changes) == 0 {
		return nil, nil
	}
	return changes, nil
}

// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"es-query-studio/internal/common/validation"
)

//go:embed activities.json
var defaultActivities []byte

// Default returns the built-in activity registry.
func Default() *ActivityRegistry {
	var reg ActivityRegistry
	if err := json.Unmarshal(defaultActivities, &reg); err != nil {
		panic(fmt.Sprintf("registry: embedded activities.json: %v", err))
	}
	return &reg
}

// LoadRegistry reads a registry file. Activities in the file replace the
// built-in ones with the same task type; unknown ones are appended.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var override ActivityRegistry
	if err := json.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}

	reg := Default()
	for _, a := range override.Activities {
		if i := reg.index(a.TaskType); i >= 0 {
			reg.Activities[i] = a
		} else {
			reg.Activities = append(reg.Activities, a)
		}
	}
	if override.Version != "" {
		reg.Version = override.Version
	}
	if override.LastUpdated != "" {
		reg.LastUpdated = override.LastUpdated
	}
	return reg, reg.Validate()
}

func (r *ActivityRegistry) index(taskType string) int {
	for i, a := range r.Activities {
		if a.TaskType == taskType {
			return i
		}
	}
	return -1
}

// Find returns the activity registered for a task type.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	if i := r.index(taskType); i >= 0 {
		return &r.Activities[i], true
	}
	return nil, false
}

// Validate checks ids, task types and timeouts.
func (r *ActivityRegistry) Validate() error {
	seen := map[string]bool{}
	for _, a := range r.Activities {
		if err := validation.ValidateActivityNaming(a.ID); err != nil {
			return fmt.Errorf("activity %q: %w", a.ID, err)
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %q: task type is required", a.ID)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("activity %q: duplicate task type %q", a.ID, a.TaskType)
		}
		seen[a.TaskType] = true
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %q: invalid timeout: %w", a.ID, err)
			}
		}
	}
	return nil
}

// TimeoutOr parses the activity timeout, returning fallback when unset.
func (a *Activity) TimeoutOr(fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(a.Timeout); err == nil && d > 0 {
		return d
	}
	return fallback
}

package contacts

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/d1nch8g/dialcoach/agent"
	"gopkg.in/yaml.v3"
)

//go:embed roster.yaml
var rosterYAML []byte

// Contact is a prospect the user can practice calling.
type Contact struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	Company     string           `yaml:"company"`
	Role        string           `yaml:"role"`
	Difficulty  agent.Difficulty `yaml:"difficulty"`
	Avatar      string           `yaml:"avatar"`
	Description string           `yaml:"description"`
	Objectives  []string         `yaml:"objectives"`
}

type roster struct {
	Contacts []Contact `yaml:"contacts"`
}

// Load returns the built-in roster.
func Load() ([]Contact, error) {
	return Parse(rosterYAML)
}

// Parse decodes and validates a roster document.
func Parse(data []byte) ([]Contact, error) {
	var r roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	seen := make(map[string]bool, len(r.Contacts))
	for i, c := range r.Contacts {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("roster contact #%d missing required field: id", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("roster has duplicate contact id %q", c.ID)
		}
		seen[c.ID] = true
		if !c.Difficulty.Valid() {
			return nil, fmt.Errorf("roster contact %q has invalid difficulty %q", c.ID, c.Difficulty)
		}
	}
	return r.Contacts, nil
}

// ErrNotFound is returned by Find for an unknown id.
var ErrNotFound = errors.New("contact not found")

// Find returns the built-in contact with the given id.
func Find(id string) (Contact, error) {
	list, err := Load()
	if err != nil {
		return Contact{}, err
	}
	for _, c := range list {
		if c.ID == id {
			return c, nil
		}
	}
	return Contact{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

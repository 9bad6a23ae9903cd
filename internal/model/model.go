// Package model abstracts the on-device language model behind the local server.
package model

import (
	"context"
	"errors"
	"slices"
)

const (
	ModelBase       = "base"
	ModelPermissive = "permissive"
)

var ErrUnknownModel = errors.New("unknown model")

type Message struct {
	Role    string
	Content string
}

// Status reports whether the on-device model can actually be used.
type Status struct {
	Available bool     `json:"available"`
	Notes     []string `json:"notes"`
}

// LanguageModel generates assistant replies. Stream calls emit for every
// delta in order and stops at the first emit error.
type LanguageModel interface {
	Models() []string
	Status() Status
	Generate(ctx context.Context, model string, messages []Message) (string, error)
	Stream(ctx context.Context, model string, messages []Message, emit func(delta string) error) error
}

// Resolve maps an empty name to the default model and rejects names lm does not serve.
func Resolve(lm LanguageModel, name string) (string, error) {
	if name == "" {
		return ModelBase, nil
	}
	if !slices.Contains(lm.Models(), name) {
		return "", ErrUnknownModel
	}
	return name, nil
}

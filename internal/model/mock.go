package model

import (
	"context"
	"strings"
	"time"
)

const (
	mockReply         = "I am a mocked Apple Intelligence response."
	defaultTokenDelay = 100 * time.Millisecond
)

var mockStreamWords = []string{"I", " am", " a", " streamed", " mocked", " response."}

// Mock stands in for the on-device model on machines without it.
type Mock struct {
	// TokenDelay is the pause before each streamed word.
	TokenDelay time.Duration
	Notes      []string
}

func NewMock() *Mock {
	return &Mock{
		TokenDelay: defaultTokenDelay,
		Notes:      []string{"On-device model unavailable; serving mocked responses."},
	}
}

func (m *Mock) Models() []string { return []string{ModelBase, ModelPermissive} }

func (m *Mock) Status() Status {
	return Status{Available: false, Notes: append([]string(nil), m.Notes...)}
}

func (m *Mock) Generate(ctx context.Context, model string, _ []Message) (string, error) {
	if _, err := Resolve(m, model); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return mockReply, nil
}

func (m *Mock) Stream(ctx context.Context, model string, _ []Message, emit func(string) error) error {
	if _, err := Resolve(m, model); err != nil {
		return err
	}
	for _, word := range mockStreamWords {
		if m.TokenDelay > 0 {
			timer := time.NewTimer(m.TokenDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(word); err != nil {
			return err
		}
	}
	return nil
}

// StreamText is the full text Stream produces.
func StreamText() string { return strings.Join(mockStreamWords, "") }

package testutil

import (
	"context"
	"strings"
	"sync"
)

// MockModel implements quality.Model for testing.
type MockModel struct {
	// Respond, when set, picks the response for a prompt.
	Respond  func(prompt string) (string, error)
	Err      error
	response string
	prompts  []string
	mu       sync.Mutex
}

// NewMockModel returns a model that answers every prompt with response.
func NewMockModel(response string) *MockModel {
	return &MockModel{response: response}
}

// Complete records the prompt and returns the configured response.
func (m *MockModel) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	respond := m.Respond
	m.mu.Unlock()

	if respond != nil {
		return respond(prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.response, nil
}

// Calls returns the number of completions requested.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// PromptsContaining counts prompts that include substr.
func (m *MockModel) PromptsContaining(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prompts {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

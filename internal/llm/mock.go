package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockModel is a deterministic Model for tests. Responses are keyed by
// Request.Name and validated against Request.Schema like real answers; it is
// safe for concurrent use.
type MockModel struct {
	mu        sync.Mutex
	responses map[string][]string
	handlers  map[string]func(Request) (string, error)
	errors    map[string]error
	calls     []Request
}

// NewMockModel creates a mock with no responses configured.
func NewMockModel() *MockModel {
	return &MockModel{
		responses: make(map[string][]string),
		handlers:  make(map[string]func(Request) (string, error)),
		errors:    make(map[string]error),
	}
}

// On queues raw text responses for name. The last response repeats once the
// queue is drained.
func (m *MockModel) On(name string, responses ...string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[name] = append(m.responses[name], responses...)
	return m
}

// OnJSON queues v marshaled as JSON.
func (m *MockModel) OnJSON(name string, v any) *MockModel {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mock response for %s: %v", name, err))
	}
	return m.On(name, string(data))
}

// OnFunc answers calls for name with fn, which takes precedence over queued responses.
func (m *MockModel) OnFunc(name string, fn func(Request) (string, error)) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = fn
	return m
}

// Fail makes every call for name return err.
func (m *MockModel) Fail(name string, err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[name] = err
	return m
}

// GenerateStructured implements Model.
func (m *MockModel) GenerateStructured(ctx context.Context, req Request, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text, err := m.next(req)
	if err != nil {
		return err
	}
	return Decode(req, text, out)
}

func (m *MockModel) next(req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn := m.handlers[req.Name]
	err := m.errors[req.Name]

	var text string
	queue := m.responses[req.Name]
	if len(queue) > 0 {
		text = queue[0]
		if len(queue) > 1 {
			m.responses[req.Name] = queue[1:]
		}
	}
	m.mu.Unlock()

	switch {
	case err != nil:
		return "", err
	case fn != nil:
		return fn(req)
	case len(queue) == 0:
		return "", fmt.Errorf("%w: no mock response for %q", ErrLLMFailed, req.Name)
	}
	return text, nil
}

// Calls returns the recorded requests for name, or all requests when name is empty.
func (m *MockModel) Calls(name string) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Request
	for _, c := range m.calls {
		if name == "" || c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

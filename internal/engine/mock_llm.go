package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/do-one-thing/internal/model"
)

// MockClassifier is a test implementation of the Classifier interface.
// It returns deterministic verdicts based on the URL for testing.
type MockClassifier struct {
	// Err, when set, fails every single-item call.
	Err error
	// BatchErr, when set, fails every batch call.
	BatchErr error
	// Delay is slept (honoring ctx) before answering.
	Delay time.Duration

	calls      []MockLLMCall
	batchCalls [][]model.ClassificationRequest
	mu         sync.Mutex
}

// MockLLMCall records details of a classification request.
type MockLLMCall struct {
	Error   error
	Focus   model.Focus
	Request model.ClassificationRequest
	Verdict model.Verdict
}

// NewMockClassifier creates a new mock LLM classifier.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{
		calls: make([]MockLLMCall, 0),
	}
}

// distractingWords mark a URL as off-topic for the mock.
var distractingWords = []string{"game", "shop", "celebrity", "meme", "sports"}

func mockVerdict(req model.ClassificationRequest) model.Verdict {
	lower := strings.ToLower(req.URL + " " + req.Title)
	for _, w := range distractingWords {
		if strings.Contains(lower, w) {
			return model.Verdict{
				URL:        req.URL,
				Relevant:   false,
				Confidence: 90,
				Reason:     "Looks like " + w + " content",
				Source:     model.SourceAI,
			}
		}
	}
	return model.Verdict{
		URL:        req.URL,
		Relevant:   true,
		Confidence: 85,
		Reason:     "Related to the focus goal",
		Source:     model.SourceAI,
	}
}

func (m *MockClassifier) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Classify returns a deterministic verdict or m.Err.
func (m *MockClassifier) Classify(ctx context.Context, req model.ClassificationRequest, focus model.Focus) (model.Verdict, error) {
	err := m.wait(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		err = m.Err
	}

	call := MockLLMCall{Request: req, Focus: focus, Error: err}
	if err != nil {
		m.calls = append(m.calls, call)
		return model.Verdict{}, err
	}

	call.Verdict = mockVerdict(req)
	m.calls = append(m.calls, call)
	return call.Verdict, nil
}

// ClassifyBatch returns a verdict per request or m.BatchErr.
func (m *MockClassifier) ClassifyBatch(ctx context.Context, reqs []model.ClassificationRequest, _ model.Focus) ([]model.Verdict, error) {
	err := m.wait(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := make([]model.ClassificationRequest, len(reqs))
	copy(recorded, reqs)
	m.batchCalls = append(m.batchCalls, recorded)

	if err == nil {
		err = m.BatchErr
	}
	if err != nil {
		return nil, err
	}

	verdicts := make([]model.Verdict, len(reqs))
	for i, req := range reqs {
		verdicts[i] = mockVerdict(req)
	}
	return verdicts, nil
}

// GetCalls returns all recorded single-item calls for verification in tests.
func (m *MockClassifier) GetCalls() []MockLLMCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]MockLLMCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of times Classify was called.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// BatchCalls returns the requests passed to each ClassifyBatch call.
func (m *MockClassifier) BatchCalls() [][]model.ClassificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]model.ClassificationRequest, len(m.batchCalls))
	copy(out, m.batchCalls)
	return out
}

// Reset clears all recorded calls.
func (m *MockClassifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = m.calls[:0]
	m.batchCalls = nil
}

// MockStats records blocked domains in memory.
type MockStats struct {
	Err     error
	blocked []string
	mu      sync.Mutex
}

// IncrementBlocked records domain.
func (s *MockStats) IncrementBlocked(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = append(s.blocked, domain)
	return s.Err
}

// Blocked returns every recorded domain in call order.
func (s *MockStats) Blocked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.blocked))
	copy(out, s.blocked)
	return out
}

package classifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/civicsafe/api/internal/llm"
	"github.com/civicsafe/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reply struct {
	text string
	err  error
}

// scriptedClient returns replies in order and repeats the last one.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []reply
	calls    int
	requests []llm.ChatRequest
}

func (c *scriptedClient) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	r := c.replies[len(c.replies)-1]
	if c.calls < len(c.replies) {
		r = c.replies[c.calls]
	}
	c.calls++
	return r.text, r.err
}

type fixedSelector string

func (f fixedSelector) Select(context.Context) string { return string(f) }

var errUpstream = errors.New("connection refused")

func newService(client llm.Client) *Service {
	return New(client, fixedSelector("anthropic/claude-3-haiku"), zap.NewNop(), Options{
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	})
}

func TestClassifyModelLabel(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: "Fire."}}}
	svc := newService(client)

	res, err := svc.Classify(context.Background(), "A building is on fire")
	require.NoError(t, err)

	assert.Equal(t, Fire, res.Department)
	assert.Equal(t, model.ConfidenceHigh, res.Confidence)
	assert.Equal(t, OutcomeClassified, res.Outcome)
	assert.Equal(t, model.ClassifiedViaModel, res.Via)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Notice)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "anthropic/claude-3-haiku", req.Model)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
	assert.Equal(t, 50, req.MaxTokens)
	assert.Contains(t, req.Messages[0].Text, `"A building is on fire"`)
	assert.Contains(t, req.Messages[0].Text, "- Disaster: ")
}

func TestClassifyOtherIsLowConfidence(t *testing.T) {
	svc := newService(&scriptedClient{replies: []reply{{text: "Other"}}})

	res, err := svc.Classify(context.Background(), "My neighbour plays loud music")
	require.NoError(t, err)
	assert.Equal(t, Other, res.Department)
	assert.Equal(t, model.ConfidenceLow, res.Confidence)
	assert.Equal(t, OutcomeClassified, res.Outcome)
}

func TestClassifyUnrecognisedLabelUsesKeywords(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: "I cannot determine that"}}}
	svc := newService(client)

	res, err := svc.Classify(context.Background(), "Heavy smoke from the warehouse")
	require.NoError(t, err)
	assert.Equal(t, Fire, res.Department)
	assert.Equal(t, model.ConfidenceLow, res.Confidence)
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, model.ClassifiedViaHeuristic, res.Via)
	assert.Empty(t, res.Notice)
	assert.Equal(t, 1, client.calls, "a parsed reply is not retried")
}

func TestClassifyRetriesThenSucceeds(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: errUpstream}, {text: "medical"}}}
	svc := newService(client)

	res, err := svc.Classify(context.Background(), "Someone collapsed")
	require.NoError(t, err)
	assert.Equal(t, Medical, res.Department)
	assert.Equal(t, model.ConfidenceHigh, res.Confidence)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, client.calls)
}

func TestClassifyUpstreamDownDegrades(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: errUpstream}}}
	svc := newService(client)

	res, err := svc.Classify(context.Background(), "There is a fire in the kitchen")
	require.NoError(t, err)
	assert.Equal(t, Fire, res.Department)
	assert.Equal(t, model.ConfidenceLow, res.Confidence)
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, DegradedNotice, res.Notice)
	assert.Equal(t, 2, client.calls, "attempts are bounded")
}

func TestClassifyEmptyResponseIsRetried(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: llm.ErrEmptyResponse}, {err: llm.ErrEmptyResponse}}}
	svc := newService(client)

	res, err := svc.Classify(context.Background(), "flooded street")
	require.NoError(t, err)
	assert.Equal(t, Disaster, res.Department)
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, 2, client.calls)
}

func TestClassifyWaitsBetweenAttempts(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: errUpstream}}}
	svc := New(client, nil, zap.NewNop(), Options{MaxAttempts: 2, RetryDelay: 50 * time.Millisecond})

	start := time.Now()
	_, err := svc.Classify(context.Background(), "robbery")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Empty(t, client.requests[0].Model, "no selector leaves the model to the backend")
}

func TestClassifyCancelledDuringBackoff(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: errUpstream}}}
	svc := New(client, nil, zap.NewNop(), Options{MaxAttempts: 3, RetryDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := svc.Classify(ctx, "car crash on the highway")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, Traffic, res.Department)
	assert.Equal(t, 1, res.Attempts)
}

func TestClassifyValidation(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: "Fire"}}}
	svc := newService(client)

	for _, desc := range []string{"", "   ", "\n\t"} {
		_, err := svc.Classify(context.Background(), desc)
		assert.ErrorIs(t, err, ErrEmptyDescription)
	}
	assert.Zero(t, client.calls, "validation happens before any upstream call")
}

func TestClassifyNotConfigured(t *testing.T) {
	svc := New(nil, nil, zap.NewNop(), Options{})
	assert.False(t, svc.Configured())

	res, err := svc.Classify(context.Background(), "fire")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, Other, res.Department)
}

func TestClassifyAlwaysReturnsKnownDepartment(t *testing.T) {
	replies := []string{"", "!!!", "Fire", "FIRE DEPARTMENT", "the police", "xyz", "Medical\nBecause...", "dis"}
	for _, r := range replies {
		svc := newService(&scriptedClient{replies: []reply{{text: r}}})
		res, err := svc.Classify(context.Background(), "something happened on the road")
		require.NoError(t, err)
		assert.True(t, res.Department.Valid(), "reply %q gave %q", r, res.Department)
		if res.Confidence == model.ConfidenceHigh {
			assert.NotEqual(t, Other, res.Department)
		}
	}
}

func TestParseDepartment(t *testing.T) {
	tests := []struct {
		in     string
		want   Department
		wantOK bool
	}{
		{"Fire", Fire, true},
		{"  police  ", Police, true},
		{"Traffic.", Traffic, true},
		{"**Medical**", Medical, true},
		{"The answer is Disaster", Disaster, true},
		{"dis", Disaster, true},
		{"Crime 123", Crime, true},
		{"", "", false},
		{"42", "", false},
		{"unknown", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseDepartment(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		desc string
		want Department
	}{
		{"There is a fire in the kitchen", Fire},
		{"Thick SMOKE everywhere", Fire},
		{"Need an ambulance now", Medical},
		{"Car accident with injuries", Medical},
		{"My phone was stolen in a robbery", Police},
		{"Traffic jam near the bridge", Traffic},
		{"A vehicle broke down", Traffic},
		{"Flood water is rising", Disaster},
		{"Storm damage on the roof", Disaster},
		{"Lost my umbrella", Other},
		{"", Other},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Heuristic(tt.desc), tt.desc)
	}
}

func TestParseRulesRejectsUnknownDepartment(t *testing.T) {
	_, err := ParseRules([]byte("rules:\n  - department: Aliens\n    keywords: [ufo]\n"))
	assert.Error(t, err)

	r, err := ParseRules([]byte("rules:\n  - department: Crime\n    keywords: [' FRAUD ']\n"))
	require.NoError(t, err)
	assert.Equal(t, Crime, r.Match("credit card fraud"))
	assert.Equal(t, Other, r.Match("fire"))
}

func TestDepartmentListCoversAll(t *testing.T) {
	list := departmentList()
	for _, d := range Departments {
		assert.True(t, strings.Contains(list, "- "+string(d)+": "), d)
	}
}

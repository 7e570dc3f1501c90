package llm

import (
	"context"
	"testing"
)

// MockProvider is a test double that satisfies the Provider interface.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, messages []Message) (*Response, error)
	StreamFunc   func(ctx context.Context, messages []Message) (<-chan Delta, error)
}

func (m *MockProvider) Complete(ctx context.Context, messages []Message) (*Response, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages)
	}
	return &Response{Content: "mock response"}, nil
}

func (m *MockProvider) Stream(ctx context.Context, messages []Message) (<-chan Delta, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, messages)
	}
	ch := make(chan Delta, 1)
	ch <- Delta{Content: "mock stream"}
	close(ch)
	return ch, nil
}

func TestProviderInterface(t *testing.T) {
	var provider Provider = &MockProvider{}
	ctx := context.Background()
	messages := []Message{{Role: "user", Content: "test"}}

	resp, err := provider.Complete(ctx, messages)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content == "" {
		t.Error("expected non-empty response")
	}

	stream, err := provider.Stream(ctx, messages)
	if err != nil {
		t.Fatal(err)
	}
	delta := <-stream
	if delta.Content == "" {
		t.Error("expected non-empty delta")
	}
}

func TestMockProviderCustomStream(t *testing.T) {
	mock := &MockProvider{
		StreamFunc: func(ctx context.Context, messages []Message) (<-chan Delta, error) {
			ch := make(chan Delta, 3)
			ch <- Delta{Content: "Step "}
			ch <- Delta{Content: "one"}
			ch <- Delta{Content: "."}
			close(ch)
			return ch, nil
		},
	}

	stream, err := mock.Stream(context.Background(), []Message{{Role: "user", Content: "plan"}})
	if err != nil {
		t.Fatal(err)
	}
	var accumulated string
	for delta := range stream {
		accumulated += delta.Content
	}
	if accumulated != "Step one." {
		t.Errorf("expected 'Step one.', got %q", accumulated)
	}
}

func TestAPIErrorTemporary(t *testing.T) {
	cases := map[int]bool{400: false, 401: false, 404: false, 429: true, 500: true, 503: true}
	for code, want := range cases {
		err := &APIError{StatusCode: code, Body: "x"}
		if err.Temporary() != want {
			t.Errorf("status %d: expected temporary=%v", code, want)
		}
	}
	if got := (&APIError{StatusCode: 401, Body: "bad key"}).Error(); got != "API error (status 401): bad key" {
		t.Errorf("unexpected message %q", got)
	}
}

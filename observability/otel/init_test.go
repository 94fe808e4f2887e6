package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("authorization=Bearer x, ,bad,team = rentals")
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %v", headers)
	}
	if headers["authorization"] != "Bearer x" || headers["team"] != "rentals" {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "trustrentd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSamplerRatio(t *testing.T) {
	if sampler(0.25).Description() == sampler(1).Description() {
		t.Fatalf("expected ratio sampler to differ from always-on")
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	cases := []struct {
		in        string
		want      string
		plaintext bool
	}{
		{"", defaultEndpoint, false},
		{"collector:4318", "collector:4318", false},
		{"http://collector:4318/", "collector:4318", true},
		{"https://otel.example.com", "otel.example.com", false},
	}
	for _, tc := range cases {
		got, plaintext := normaliseEndpoint(tc.in)
		if got != tc.want || plaintext != tc.plaintext {
			t.Fatalf("normaliseEndpoint(%q) = %q, %v", tc.in, got, plaintext)
		}
	}
}

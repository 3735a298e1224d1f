package gemini

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/KeshavPeri/tickle/internal/models"
)

var apple = models.Stock{Ticker: "AAPL", Name: "Apple Inc.", Sector: "Technology", Industry: "Consumer Electronics"}

func TestBuildInsightPrompt_OmitsIdentity(t *testing.T) {
	prompt := buildInsightPrompt(apple, &models.Snapshot{LastClose: 190.5, OneYearReturn: 12.3, MarketCapB: 2950})
	if strings.Contains(prompt, "AAPL") || strings.Contains(prompt, "Apple") {
		t.Errorf("prompt leaks identity: %s", prompt)
	}
	for _, want := range []string{"Technology", "Consumer Electronics", "$190.50", "12.3%", "$2950B"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSanitizeInsight(t *testing.T) {
	got, err := sanitizeInsight("  \"A steady climber that shrugged off a rough spring.\"\nSecond line", apple)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "A steady climber that shrugged off a rough spring." {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeInsight_RejectsLeaks(t *testing.T) {
	cases := []string{
		"AAPL had a quiet year.",
		"Shares of apple rose.",
	}
	for _, c := range cases {
		if _, err := sanitizeInsight(c, apple); !errors.Is(err, ErrLeaksAnswer) {
			t.Errorf("sanitizeInsight(%q) err = %v, want ErrLeaksAnswer", c, err)
		}
	}
	if _, err := sanitizeInsight("Paper trails grow longer.", apple); err != nil {
		t.Errorf("substring of ticker should not count as a leak: %v", err)
	}
}

func TestSanitizeInsight_Empty(t *testing.T) {
	if _, err := sanitizeInsight("  \n", apple); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestExtractTextFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "Hello "}, {Text: "world"}}},
		}},
	}
	got, err := extractTextFromResponse(resp)
	if err != nil || got != "Hello world" {
		t.Errorf("got %q, %v", got, err)
	}
	if _, err := extractTextFromResponse(&genai.GenerateContentResponse{}); err == nil {
		t.Error("expected error for empty response")
	}
}

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/gema-autograder/pkg/testreport"
)

// maxFeedbackTests caps how many test outcomes are summarised in the prompt.
const maxFeedbackTests = 10

// FeedbackInput carries everything the tutor prompt needs.
type FeedbackInput struct {
	Problem    string
	Code       string
	Tests      []testreport.Outcome
	Passed     bool
	Score      float64
	TotalTests int
}

// FallbackFeedback is the canned text used when the model is unavailable.
func FallbackFeedback(in FeedbackInput) Feedback {
	text := "AI feedback is currently unavailable. " +
		"Ensure your API key is configured (GEMA_AI_API_KEY, GEMINI_API_KEY or GOOGLE_API_KEY).\n\n" +
		fmt.Sprintf("Summary: score=%g, total_tests=%d, passed=%t.\n", in.Score, in.TotalTests, in.Passed) +
		"Hint: Review failed test errors above and handle edge cases."
	return Feedback{Text: text, Fallback: true}
}

// GenerateFeedback asks the model for beginner-oriented tutoring feedback.
func (a *Assistant) GenerateFeedback(ctx context.Context, in FeedbackInput) Feedback {
	raw, err := a.generate(ctx, "feedback", feedbackPrompt(in))
	if err != nil {
		a.fallback("feedback", err, "")
		return FallbackFeedback(in)
	}

	text := StripFences(raw)
	if text == "" {
		a.fallback("feedback", fmt.Errorf("%w: empty feedback", ErrMalformedResponse), raw)
		return FallbackFeedback(in)
	}
	return Feedback{Text: text}
}

func feedbackPrompt(in FeedbackInput) string {
	var points []string
	for _, outcome := range in.Tests {
		if len(points) == maxFeedbackTests {
			break
		}
		switch {
		case outcome.Status == testreport.StatusFailed && outcome.Error != "":
			points = append(points, fmt.Sprintf("- %s: failed: %s", outcome.Name, outcome.Error))
		case outcome.Status != "":
			points = append(points, fmt.Sprintf("- %s: %s", outcome.Name, outcome.Status))
		}
	}
	summary := strings.Join(points, "\n")
	if summary == "" {
		summary = "- No detailed test results available"
	}

	var b strings.Builder
	b.WriteString("You are an expert programming tutor. Provide concise, actionable feedback ")
	b.WriteString("for a beginner student based on their code, the problem, and test results.\n\n")
	fmt.Fprintf(&b, "Problem:\n%s\n\n", in.Problem)
	fmt.Fprintf(&b, "Student Code:\n```go\n%s\n```\n\n", in.Code)
	fmt.Fprintf(&b, "Score: %g / 100 | Tests: %d | Passed: %t\n", in.Score, in.TotalTests, in.Passed)
	b.WriteString("Test Summary (truncated):\n")
	b.WriteString(summary)
	b.WriteString("\n\nReturn helpful feedback in plain text with:\n")
	b.WriteString("1) What works, 2) What fails and why, 3) Concrete next steps, 4) One edge case.")
	return b.String()
}

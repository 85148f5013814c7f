package stance

import (
	"context"
	"fmt"
	"strings"

	"convoyset/internal/model"
)

// Label is the classifier's verdict for a tweet or a user timeline.
type Label string

const (
	Left    Label = "left"
	Right   Label = "right"
	Neutral Label = "neutral"
	// ErrorSentinel records a failed classifier call without aborting the run.
	ErrorSentinel Label = "error"
)

// Detector is the external classifier boundary. Implementations own their
// retry policy; the drivers absorb per-item failures as the sentinel.
type Detector interface {
	EvaluateTweet(ctx context.Context, t model.Tweet) (Label, error)
	EvaluateUser(ctx context.Context, tweets []model.Tweet) (Label, error)
}

// NormalizeLabel maps a raw model response onto the closed label set.
func NormalizeLabel(s string) (Label, error) {
	low := strings.ToLower(s)
	switch {
	case strings.Contains(low, "right"):
		return Right, nil
	case strings.Contains(low, "left"):
		return Left, nil
	case strings.Contains(low, "neutral"):
		return Neutral, nil
	}
	return "", fmt.Errorf("unrecognized classifier response %q", s)
}

// FormatTweetPrompt wraps one sanitized tweet for the classifier.
func FormatTweetPrompt(t model.Tweet) string {
	return fmt.Sprintf("<user_query>\nTweet: %s\n</user_query>\n", t.SanitizedText())
}

// FormatUserPrompt wraps a user's sampled timeline for the classifier.
func FormatUserPrompt(tweets []model.Tweet) string {
	lines := make([]string, 0, len(tweets))
	for i, t := range tweets {
		lines = append(lines, fmt.Sprintf("tweet %d: %s", i+1, t.SanitizedText()))
	}
	return fmt.Sprintf("<user_query>\n%s\n</user_query>", strings.Join(lines, "\n"))
}

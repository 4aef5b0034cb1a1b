package core

import (
	"regexp"
	"strings"

	"github.com/A7-pro/mikerobot/internal/utils"
)

type Intent int

const (
	IntentChat Intent = iota
	IntentCreator
	IntentClear
	IntentImage
)

func (i Intent) String() string {
	switch i {
	case IntentCreator:
		return "creator"
	case IntentClear:
		return "clear"
	case IntentImage:
		return "image"
	default:
		return "chat"
	}
}

var (
	creatorPhrases = []string{"مين سواك", "who made you", "من صنعك"}
	clearPhrases   = []string{"امسح الشات", "clear chat", "ابدأ من جديد"}

	// Order matters for stripping: "ارسم لي" goes whole before "ارسم", and
	// "create an image of" before "image of".
	imageKeywords = []string{"ارسم لي", "ارسم", "صورة لـ", "صمم لي", "draw", "create an image of", "image of", "generate image"}

	imageKeywordPatterns = compileKeywordPatterns(imageKeywords)
)

type keywordPattern struct {
	leading *regexp.Regexp
	any     *regexp.Regexp
}

func compileKeywordPatterns(keywords []string) []keywordPattern {
	out := make([]keywordPattern, 0, len(keywords))
	for _, k := range keywords {
		q := regexp.QuoteMeta(k)
		out = append(out, keywordPattern{
			leading: regexp.MustCompile(`(?i)^` + q + `\s*`),
			any:     regexp.MustCompile(`(?i)` + q),
		})
	}
	return out
}

// ClassifyIntent decides how a user message is handled. For IntentImage the returned prompt is the
// text with every image keyword removed; it may be empty.
func ClassifyIntent(text string) (Intent, string) {
	switch {
	case utils.ContainsAnyFold(text, creatorPhrases...):
		return IntentCreator, ""
	case utils.ContainsAnyFold(text, clearPhrases...):
		return IntentClear, ""
	case utils.ContainsAnyFold(text, imageKeywords...):
		return IntentImage, imagePrompt(text)
	default:
		return IntentChat, ""
	}
}

func imagePrompt(text string) string {
	prompt := strings.TrimSpace(text)
	for _, p := range imageKeywordPatterns {
		prompt = p.leading.ReplaceAllString(prompt, "")
		prompt = p.any.ReplaceAllString(prompt, "")
	}
	return strings.Join(strings.Fields(prompt), " ")
}

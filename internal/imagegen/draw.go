package imagegen

import (
	"regexp"
	"strings"
)

var drawKeywords = []string{
	"нарисуй", "нарисуйте", "рисунок", "изображение",
	"draw", "paint", "image", "picture",
	"создай картинку", "сгенерируй изображение",
	"хочу картинку", "сделай рисунок",
}

var drawPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(drawKeywords))
	for _, keyword := range drawKeywords {
		patterns = append(patterns, regexp.MustCompile(`(?is)`+regexp.QuoteMeta(keyword)+`\s+(.+)`))
	}
	return patterns
}()

// IsDrawRequest reports whether a plain message asks for a picture.
func IsDrawRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range drawKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ExtractPrompt returns what follows the first matching draw keyword.
// A message that is only a keyword yields an empty prompt.
func ExtractPrompt(text string) string {
	text = strings.TrimSpace(text)
	for _, pattern := range drawPatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			return strings.TrimSpace(match[1])
		}
	}

	lower := strings.ToLower(strings.Trim(text, " !.?"))
	for _, keyword := range drawKeywords {
		if lower == keyword {
			return ""
		}
	}
	return text
}

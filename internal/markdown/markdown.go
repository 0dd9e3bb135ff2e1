package markdown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the Telegram limit for one text message.
const MaxMessageLength = 4096

const (
	ellipsis    = "..."
	cutLookback = 100
)

var (
	fencedCode  = regexp.MustCompile("(?s)```([\\w+-]*)\\n(.*?)\\n?```")
	inlineCode  = regexp.MustCompile("`([^`\\n]+)`")
	link        = regexp.MustCompile(`\[([^\]\n]+)\]\((https?://[^)\s]+)\)`)
	boldStars   = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
	boldUnder   = regexp.MustCompile(`__([^_\n]+?)__`)
	italicStar  = regexp.MustCompile(`\*([^*\n]+?)\*`)
	fencedLine  = regexp.MustCompile("(?s)```(.+?)```")
	placeholder = regexp.MustCompile(`\x00(\d+)\x00`)
)

// Underscores inside words (snake_case) are left alone.
var italicUnder = regexp.MustCompile(`(^|[^\p{L}\p{N}_])_([^_\n]+?)_($|[^\p{L}\p{N}_])`)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape escapes the characters Telegram HTML parse mode treats specially.
func Escape(text string) string {
	return htmlEscaper.Replace(strings.ToValidUTF8(text, ""))
}

// ToTelegramHTML converts markdown-like model output into Telegram HTML.
// Code spans are escaped verbatim and never get inline formatting.
func ToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	var codes []string
	hold := func(html string) string {
		codes = append(codes, html)
		return fmt.Sprintf("\x00%d\x00", len(codes)-1)
	}

	text = fencedCode.ReplaceAllStringFunc(text, func(m string) string {
		parts := fencedCode.FindStringSubmatch(m)
		body := Escape(parts[2])
		if parts[1] != "" {
			return hold(fmt.Sprintf(`<pre><code class="language-%s">%s</code></pre>`, parts[1], body))
		}
		return hold("<pre>" + body + "</pre>")
	})
	text = fencedLine.ReplaceAllStringFunc(text, func(m string) string {
		return hold("<pre>" + Escape(fencedLine.FindStringSubmatch(m)[1]) + "</pre>")
	})
	text = inlineCode.ReplaceAllStringFunc(text, func(m string) string {
		return hold("<code>" + Escape(inlineCode.FindStringSubmatch(m)[1]) + "</code>")
	})

	text = Escape(text)

	text = link.ReplaceAllStringFunc(text, func(m string) string {
		parts := link.FindStringSubmatch(m)
		return `<a href="` + strings.ReplaceAll(parts[2], `"`, "&quot;") + `">` + parts[1] + "</a>"
	})
	text = boldStars.ReplaceAllString(text, "<b>$1</b>")
	text = boldUnder.ReplaceAllString(text, "<b>$1</b>")
	text = italicStar.ReplaceAllString(text, "<i>$1</i>")
	text = italicUnder.ReplaceAllString(text, "$1<i>$2</i>$3")

	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		i, err := strconv.Atoi(placeholder.FindStringSubmatch(m)[1])
		if err != nil || i >= len(codes) {
			return m
		}
		return codes[i]
	})
}

// Truncate shortens text to at most limit runes, ellipsis included. It cuts at
// the last space when one is close enough to the limit.
func Truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	if limit <= len(ellipsis) {
		return string([]rune(text)[:limit])
	}

	runes := []rune(text)[:limit-len(ellipsis)]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i >= 0 && utf8.RuneCountInString(cut[:i]) > len(runes)-cutLookback {
		cut = cut[:i]
	}
	return cut + ellipsis
}

// FormatLimited converts text to Telegram HTML within limit runes, shortening
// the source text until the formatted result fits.
func FormatLimited(text string, limit int) string {
	formatted := ToTelegramHTML(text)
	source := utf8.RuneCountInString(text)
	for utf8.RuneCountInString(formatted) > limit && source > 0 {
		overflow := utf8.RuneCountInString(formatted) - limit
		source -= max(overflow, len(ellipsis))
		if source <= 0 {
			return Escape(Truncate(text, limit))
		}
		formatted = ToTelegramHTML(Truncate(text, source))
	}
	return formatted
}

// Fits reports whether text is within the Telegram message limit.
func Fits(text string) bool {
	return utf8.RuneCountInString(text) <= MaxMessageLength
}

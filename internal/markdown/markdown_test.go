package markdown

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestToTelegramHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"plain", "Привет, мир", "Привет, мир"},
		{"escape", "a < b && c > d", "a &lt; b &amp;&amp; c &gt; d"},
		{"bold stars", "**жирный** текст", "<b>жирный</b> текст"},
		{"bold underscores", "__bold__", "<b>bold</b>"},
		{"italic star", "*курсив*", "<i>курсив</i>"},
		{"italic underscore", "это _курсив_ тут", "это <i>курсив</i> тут"},
		{"snake case untouched", "use my_var_name here", "use my_var_name here"},
		{"inline code", "run `go test ./...` now", "run <code>go test ./...</code> now"},
		{"code is not formatted", "`**x** <y>`", "<code>**x** &lt;y&gt;</code>"},
		{
			"fenced code with language",
			"```go\nif a < b {\n\treturn\n}\n```",
			"<pre><code class=\"language-go\">if a &lt; b {\n\treturn\n}</code></pre>",
		},
		{"fenced code without language", "```\nx := 1\n```", "<pre>x := 1</pre>"},
		{"fenced one line", "```echo hi```", "<pre>echo hi</pre>"},
		{"link", "[Go](https://go.dev/doc?a=1&b=2)", `<a href="https://go.dev/doc?a=1&amp;b=2">Go</a>`},
		{"quote in link", `[q](https://example.com/a"b)`, `<a href="https://example.com/a&quot;b">q</a>`},
		{"not a link", "[x](javascript:alert(1))", "[x](javascript:alert(1))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToTelegramHTML(tt.input))
		})
	}
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;&amp;", Escape("<b>&"))
	assert.Equal(t, "ab", Escape("a\xffb"))
}

func TestTruncate(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", Truncate("hello", 10))
	})

	t.Run("cuts at last space near limit", func(t *testing.T) {
		text := strings.Repeat("a", 4080) + " " + strings.Repeat("b", 100)
		result := Truncate(text, MaxMessageLength)
		assert.Equal(t, strings.Repeat("a", 4080)+"...", result)
	})

	t.Run("hard cut when no nearby space", func(t *testing.T) {
		text := "start " + strings.Repeat("я", 5000)
		result := Truncate(text, MaxMessageLength)
		assert.Equal(t, MaxMessageLength, utf8.RuneCountInString(result))
		assert.True(t, strings.HasSuffix(result, "я..."))
	})

	t.Run("tiny limit", func(t *testing.T) {
		assert.Equal(t, "ab", Truncate("abcdef", 2))
	})
}

func TestFormatLimited(t *testing.T) {
	text := strings.Repeat("a < b ", 1000)
	result := FormatLimited(text, MaxMessageLength)

	assert.LessOrEqual(t, utf8.RuneCountInString(result), MaxMessageLength)
	assert.True(t, strings.HasSuffix(result, "..."))
	assert.NotContains(t, result, "<")

	assert.Equal(t, "<b>ok</b>", FormatLimited("**ok**", MaxMessageLength))
	assert.True(t, Fits(result))
	assert.False(t, Fits(strings.Repeat("x", MaxMessageLength+1)))
}

func BenchmarkToTelegramHTML(b *testing.B) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "small",
			data: "**bold** _italic_ `code`",
		},
		{
			name: "medium",
			data: strings.Repeat("**bold** _italic_ `code` ", 100),
		},
		{
			name: "large",
			data: strings.Repeat("**bold** _italic_ `code` ", 1000),
		},
	}

	for _, tt := range tests {
		b.Run(tt.name, func(b *testing.B) {
			for b.Loop() {
				_ = ToTelegramHTML(tt.data)
			}
		})
	}
}

package render

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// PlainText converts an HTML fragment, such as a reverse proxy error page,
// to collapsed plain text. Script and style contents are dropped.
func PlainText(raw string) string {
	if raw == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	var sb strings.Builder
	var skip int
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")

		case html.StartTagToken:
			switch tokenizer.Token().Data {
			case "script", "style", "head":
				skip++
			case "p", "br", "h1", "h2", "h3", "hr", "li", "div":
				sb.WriteString(" ")
			}

		case html.EndTagToken:
			switch tokenizer.Token().Data {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			}

		case html.TextToken:
			if skip == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteString(" ")
			}
		}
	}
}

// Wrap performs simple word wrapping to the given width.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var result strings.Builder
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}
		lineLen := 0
		for i, word := range words {
			wlen := len([]rune(word))
			if i > 0 && lineLen+1+wlen > width {
				result.WriteString("\n")
				lineLen = 0
			} else if i > 0 {
				result.WriteString(" ")
				lineLen++
			}
			result.WriteString(word)
			lineLen += wlen
		}
		result.WriteString("\n")
	}
	return strings.TrimRight(result.String(), "\n")
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// TimeAgo renders t relative to now, e.g. "5 minutes ago".
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

package intake

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMinBodyLength is the shortest normalized body accepted as a proposal.
const DefaultMinBodyLength = 20

var (
	separatorLineRe = regexp.MustCompile(`^[-_]{2,}`)
	footerLineRe    = regexp.MustCompile(`(?i)^(Sent from|On .* wrote:|Best regards|Thanks)`)
)

// NormalizeBody picks the proposal text out of an inbound email. Plain text is
// used as sent. HTML-only mail is flattened to text and stripped of signature
// separators and sign-off lines.
func NormalizeBody(text, htmlBody string, minLength int) (string, error) {
	if minLength <= 0 {
		minLength = DefaultMinBodyLength
	}

	content := strings.TrimSpace(text)
	if content == "" && strings.TrimSpace(htmlBody) != "" {
		content = dropBoilerplate(htmlToText(htmlBody))
	}

	if n := utf8.RuneCountInString(content); n < minLength {
		if content == "" {
			return "", validationError(ErrBodyTooShort, "body is empty")
		}
		return "", validationError(ErrBodyTooShort, "body has fewer than the required characters")
	}

	return content, nil
}

// htmlToText keeps text nodes outside script and style elements. Block-level
// elements end a line so the line filters below still see line starts.
func htmlToText(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.ReplaceAll(b.String(), "\u00a0", " ")
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if a == atom.Br {
				b.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if skip > 0 {
					skip--
				}
			case atom.P, atom.Div, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4, atom.Blockquote, atom.Table:
				b.WriteString("\n")
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func dropBoilerplate(content string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if separatorLineRe.MatchString(trimmed) || footerLineRe.MatchString(trimmed) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t\r"))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Package normalizer converts raw provider email payloads into the
// canonical form the rest of the pipeline consumes.
package normalizer

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"fjacquet/mail-ledger/internal/dateutils"
	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/pipeerror"
	"fjacquet/mail-ledger/internal/textutils"

	"golang.org/x/net/html"
)

var (
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	lineSpaceRe  = regexp.MustCompile(`[ \t]+`)
)

// Normalizer produces NormalizedEmail values from raw payloads.
type Normalizer struct {
	logger logging.Logger
}

// New creates a normalizer.
func New(logger logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Normalizer{logger: logger}
}

// Normalize decodes a raw email into canonical form. The same input
// always yields the same output. A payload missing a sender or
// timestamp, or missing both body and subject, fails with
// MalformedEmailError. A subject-only email passes through with an
// empty body; the subject alone can carry a receipt.
func (n *Normalizer) Normalize(raw models.RawEmail) (models.NormalizedEmail, error) {
	var out models.NormalizedEmail

	sender := textutils.SenderAddress(raw.Header("From"))
	if sender == "" {
		return out, &pipeerror.MalformedEmailError{EmailID: raw.ID, Reason: "missing From header"}
	}

	sentAt, err := n.sentAt(raw)
	if err != nil {
		return out, err
	}

	subject := strings.TrimSpace(raw.Header("Subject"))
	body, err := n.bodyText(raw)
	if err != nil {
		return out, err
	}
	if body == "" && subject == "" {
		return out, &pipeerror.MalformedEmailError{EmailID: raw.ID, Reason: "missing body and subject"}
	}

	out = models.NormalizedEmail{
		ID:        raw.ID,
		SentAt:    sentAt,
		Sender:    sender,
		Subject:   subject,
		PlainText: body,
	}

	n.logger.Debug("normalized email",
		logging.Field{Key: logging.FieldEmailID, Value: raw.ID},
		logging.Field{Key: "body_len", Value: len(body)})
	return out, nil
}

// sentAt prefers the provider internal date and falls back to the Date
// header.
func (n *Normalizer) sentAt(raw models.RawEmail) (time.Time, error) {
	if raw.InternalDate > 0 {
		return time.UnixMilli(raw.InternalDate).UTC(), nil
	}

	if header := raw.Header("Date"); header != "" {
		if t, err := time.Parse(time.RFC1123Z, header); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse(time.RFC1123, header); err == nil {
			return t.UTC(), nil
		}
		if t, err := dateutils.Parse(header); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &pipeerror.MalformedEmailError{EmailID: raw.ID, Reason: "missing timestamp"}
}

// bodyText extracts a plain-text body, preferring a text/plain part and
// falling back to rendered text/html. An email with no body part at all
// yields an empty string, not an error.
func (n *Normalizer) bodyText(raw models.RawEmail) (string, error) {
	if data := findPart(raw.Parts, "text/plain"); data != "" {
		decoded, err := decodeBody(data)
		if err != nil {
			return "", &pipeerror.MalformedEmailError{EmailID: raw.ID, Reason: "undecodable text/plain part"}
		}
		return collapseWhitespace(decoded), nil
	}

	if data := findPart(raw.Parts, "text/html"); data != "" {
		decoded, err := decodeBody(data)
		if err != nil {
			return "", &pipeerror.MalformedEmailError{EmailID: raw.ID, Reason: "undecodable text/html part"}
		}
		text, err := htmlToText(decoded)
		if err != nil {
			return "", &pipeerror.MalformedEmailError{EmailID: raw.ID, Reason: "unparseable HTML body"}
		}
		return text, nil
	}

	return "", nil
}

// findPart walks the MIME tree depth-first and returns the data of the
// first part with the wanted type.
func findPart(parts []models.Part, mimeType string) string {
	for _, part := range parts {
		if part.MimeType == mimeType && part.Data != "" {
			return part.Data
		}
		if data := findPart(part.Parts, mimeType); data != "" {
			return data
		}
	}
	return ""
}

// decodeBody handles both padded and unpadded base64url payloads.
func decodeBody(data string) (string, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded), nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// blockTags are HTML elements that terminate a line of rendered text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"td": true, "table": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "ul": true, "ol": true,
	"blockquote": true, "hr": true,
}

// skipTags are HTML elements whose content never renders as text.
var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
}

// htmlToText renders HTML to plain text with a fixed traversal so the
// same markup always yields the same text.
func htmlToText(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && skipTags[node.Data] {
			return
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && blockTags[node.Data] {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	return collapseWhitespace(sb.String()), nil
}

// collapseWhitespace normalizes line endings, squeezes runs of spaces,
// and trims each line, keeping at most one blank line between blocks.
func collapseWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = lineSpaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

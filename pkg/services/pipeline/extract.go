package pipeline

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	reFence  = regexp.MustCompile("```(?:json)?")
	reLabel  = regexp.MustCompile(`(?i)^json\b\s*`)
	reObject = regexp.MustCompile(`(?s)\{.*\}`)
	reBullet = regexp.MustCompile(`(?m)^([ \t]*)\*[ \t]+`)

	errMalformedReply = errors.New("malformed reply")
)

// Normalize strips code fences and a leading json label
func Normalize(raw string) string {
	s := reFence.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)
	s = reLabel.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Extract returns the display answer of a raw model reply.
// It never fails: the normalized text is the last resort.
func Extract(raw string) string {
	answer, _ := extract(Normalize(raw))
	return PostProcess(answer)
}

// extract tries the whole text, then the first {...} span, then the text itself
func extract(text string) (answer string, how string) {
	var err error
	if answer, err = parseAnswer(text); err == nil {
		return answer, "json"
	}
	if span := reObject.FindString(text); len(span) > 0 && len(span) < len(text) {
		if answer, err = parseAnswer(span); err == nil {
			return answer, "span"
		}
	}
	logger().Debugw("fallback to plain text", "err", err, "size", len(text))
	return text, "text"
}

func parseAnswer(s string) (string, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return "", errMalformedReply
	}
	if v, ok := obj["answer"].(string); ok && len(strings.TrimSpace(v)) > 0 {
		return v, nil
	}
	return "", errMalformedReply
}

// PostProcess turns literal \n into line breaks and "* " bullets into "- "
func PostProcess(answer string) string {
	answer = strings.ReplaceAll(answer, `\n`, "\n")
	answer = reBullet.ReplaceAllString(answer, "${1}- ")
	return strings.TrimSpace(answer)
}

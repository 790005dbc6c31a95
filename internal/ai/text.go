package ai

import (
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:\\w*\\n)?(.*?)```")
	fencedAnyRe   = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe  = regexp.MustCompile("`[^`]*`")
	urlRe         = regexp.MustCompile(`https?://\S+`)
	pauseRe       = regexp.MustCompile(`([.!?])\s+`)
)

// ExtractCode pulls the first fenced code block out of a model
// response, along with the prose around the fences as its
// explanation. Both are empty when the response has no code.
func ExtractCode(raw string) (code string, explanation string) {
	match := fencedBlockRe.FindStringSubmatch(raw)
	if match == nil {
		return "", ""
	}
	code = strings.TrimSpace(match[1])

	// Splitting on the fences leaves prose at even indexes and fence
	// interiors at odd ones.
	var prose []string
	for i, part := range strings.Split(raw, "```") {
		if i%2 == 1 {
			continue
		}
		part = strings.TrimSpace(part)
		if part != "" {
			prose = append(prose, part)
		}
	}
	return code, strings.Join(prose, " ")
}

// CleanForSpeech rewrites a model response for the synthesizer: code
// blocks and URLs are replaced with short spoken markers, and sentence
// boundaries gain a comma so playback pauses naturally.
func CleanForSpeech(raw string) string {
	text := fencedAnyRe.ReplaceAllString(raw, "Code block removed for speech.")
	text = inlineCodeRe.ReplaceAllString(text, "")
	text = urlRe.ReplaceAllString(text, "URL")
	text = pauseRe.ReplaceAllString(text, "$1, ")
	return strings.TrimSpace(text)
}

package svg

import (
	"bytes"
	"errors"
	"regexp"
)

var ErrNotSVG = errors.New("not an svg document")

var (
	scriptTagPattern   = regexp.MustCompile(`(?is)<\s*script\b.*?(<\s*/\s*script\s*>|/\s*>)`)
	foreignObjPattern  = regexp.MustCompile(`(?is)<\s*foreignObject\b.*?<\s*/\s*foreignObject\s*>`)
	eventAttrPattern   = regexp.MustCompile(`(?is)\son[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	scriptHrefPattern  = regexp.MustCompile(`(?is)\s(xlink:)?href\s*=\s*("\s*javascript:[^"]*"|'\s*javascript:[^']*')`)
	externalUsePattern = regexp.MustCompile(`(?is)<\s*use\b[^>]*href\s*=\s*("https?:[^"]*"|'https?:[^']*')[^>]*>`)
)

// Sanitize strips scripts, event handlers, foreign objects and javascript or remote references
// from an uploaded SVG logo.
func Sanitize(input []byte) ([]byte, error) {
	if !bytes.Contains(bytes.ToLower(input), []byte("<svg")) {
		return nil, ErrNotSVG
	}

	clean := scriptTagPattern.ReplaceAll(input, nil)
	clean = foreignObjPattern.ReplaceAll(clean, nil)
	clean = eventAttrPattern.ReplaceAll(clean, nil)
	clean = scriptHrefPattern.ReplaceAll(clean, nil)
	clean = externalUsePattern.ReplaceAll(clean, nil)

	return clean, nil
}

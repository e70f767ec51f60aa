package agent

import (
	"regexp"
	"strings"
)

// identLike matches ids and class names that are safe to use verbatim in
// a CSS selector.
var identLike = regexp.MustCompile(`^[a-zA-Z][\w-]*$`)

// Locator derives the most specific selector the element's attributes
// allow. Priority: #id, then tag.classes (up to three), then the
// structural path recorded at observation time, then the bare tag.
func Locator(el PageElement) string {
	tag := strings.ToLower(el.Tag)

	if el.ID != "" && identLike.MatchString(el.ID) {
		return "#" + el.ID
	}

	var classes []string
	for _, c := range el.Classes {
		if identLike.MatchString(c) {
			classes = append(classes, c)
		}
		if len(classes) == 3 {
			break
		}
	}
	if len(classes) > 0 {
		return tag + "." + strings.Join(classes, ".")
	}

	if el.Path != "" {
		return el.Path
	}
	return tag
}

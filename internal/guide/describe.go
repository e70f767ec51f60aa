package guide

import (
	"fmt"
	"strings"
)

// maxDescriptionText bounds the element text quoted in a description.
const maxDescriptionText = 50

// Describe derives a human-readable step description from an event.
//
// Pure function of the event: the same payload always yields the same
// string, so descriptions are safe to regenerate and to golden-test.
func Describe(ev UserEvent) string {
	var text, tag string
	if ev.Element != nil {
		text = truncateRunes(strings.TrimSpace(ev.Element.Text), maxDescriptionText)
		tag = strings.ToLower(ev.Element.Tag)
	}

	switch ev.EventType {
	case EventClick:
		switch tag {
		case "button":
			return fmt.Sprintf("Click the \"%s\" button", orDefault(text, "button"))
		case "a":
			return fmt.Sprintf("Click the \"%s\" link", orDefault(text, "link"))
		case "input":
			return "Click on input field"
		case "select":
			return "Open dropdown"
		case "li":
			return fmt.Sprintf("Click \"%s\"", orDefault(text, "menu item"))
		}
		desc := fmt.Sprintf("Click on %s", orDefault(tag, "element"))
		if text != "" {
			desc += fmt.Sprintf(" \"%s\"", text)
		}
		return desc

	case EventInput:
		label := text
		if label == "" && tag != "input" {
			// A bare <input> tag says nothing useful about the field;
			// only more specific tags (textarea, select) serve as labels.
			label = tag
		}
		if label == "" {
			label = "field"
		}
		if ev.InputValue != "" {
			return fmt.Sprintf("Type \"%s\" in the %s", ev.InputValue, label)
		}
		return fmt.Sprintf("Enter text in the %s", label)

	case EventNavigate:
		return "Navigate to: " + ev.PageURL

	case EventScroll:
		return "Scroll down the page"
	}

	return "Perform action"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package guide

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func elem(tag, text string) *ElementInfo {
	return &ElementInfo{Tag: tag, Text: text}
}

func TestDescribe_ClickButton(t *testing.T) {
	ev := UserEvent{EventType: EventClick, Element: elem("button", "Save")}
	assert.Equal(t, `Click the "Save" button`, Describe(ev))
}

func TestDescribe_ClickButton_NoText(t *testing.T) {
	ev := UserEvent{EventType: EventClick, Element: elem("BUTTON", "")}
	assert.Equal(t, `Click the "button" button`, Describe(ev))
}

func TestDescribe_ClickLink(t *testing.T) {
	ev := UserEvent{EventType: EventClick, Element: elem("a", "Docs")}
	assert.Equal(t, `Click the "Docs" link`, Describe(ev))
}

func TestDescribe_ClickInput(t *testing.T) {
	ev := UserEvent{EventType: EventClick, Element: elem("input", "ignored")}
	assert.Equal(t, "Click on input field", Describe(ev))
}

func TestDescribe_ClickSelect(t *testing.T) {
	ev := UserEvent{EventType: EventClick, Element: elem("select", "")}
	assert.Equal(t, "Open dropdown", Describe(ev))
}

func TestDescribe_ClickListItem(t *testing.T) {
	ev := UserEvent{EventType: EventClick, Element: elem("li", "Settings")}
	assert.Equal(t, `Click "Settings"`, Describe(ev))
}

func TestDescribe_ClickGenericFallback(t *testing.T) {
	ev := UserEvent{EventType: EventClick, Element: elem("div", "Card title")}
	assert.Equal(t, `Click on div "Card title"`, Describe(ev))

	ev = UserEvent{EventType: EventClick, Element: elem("span", "")}
	assert.Equal(t, "Click on span", Describe(ev))

	ev = UserEvent{EventType: EventClick}
	assert.Equal(t, "Click on element", Describe(ev))
}

func TestDescribe_ClickTextBounded(t *testing.T) {
	long := strings.Repeat("x", 120)
	ev := UserEvent{EventType: EventClick, Element: elem("button", long)}

	got := Describe(ev)
	assert.Equal(t, `Click the "`+strings.Repeat("x", 50)+`" button`, got)
}

func TestDescribe_InputWithValue(t *testing.T) {
	ev := UserEvent{
		EventType:  EventInput,
		Element:    elem("input", ""),
		InputValue: "hello",
	}
	assert.Equal(t, `Type "hello" in the field`, Describe(ev))
}

func TestDescribe_InputWithoutValue(t *testing.T) {
	ev := UserEvent{EventType: EventInput, Element: elem("textarea", "Comments")}
	assert.Equal(t, "Enter text in the Comments", Describe(ev))

	// Label falls back from text to tag to "field".
	ev = UserEvent{EventType: EventInput, Element: elem("textarea", "")}
	assert.Equal(t, "Enter text in the textarea", Describe(ev))

	ev = UserEvent{EventType: EventInput}
	assert.Equal(t, "Enter text in the field", Describe(ev))
}

func TestDescribe_Navigate(t *testing.T) {
	ev := UserEvent{EventType: EventNavigate, PageURL: "https://example.com/checkout"}
	assert.Equal(t, "Navigate to: https://example.com/checkout", Describe(ev))
}

func TestDescribe_Scroll(t *testing.T) {
	ev := UserEvent{EventType: EventScroll}
	assert.Equal(t, "Scroll down the page", Describe(ev))
}

func TestDescribe_UnknownEvent(t *testing.T) {
	ev := UserEvent{EventType: EventType("hover")}
	assert.Equal(t, "Perform action", Describe(ev))
}

// TestDescribe_Golden pins the full derivation table in one golden file so
// any template drift is visible as a diff.
func TestDescribe_Golden(t *testing.T) {
	events := []UserEvent{
		{EventType: EventClick, Element: elem("button", "Save")},
		{EventType: EventClick, Element: elem("button", "")},
		{EventType: EventClick, Element: elem("a", "Learn more")},
		{EventType: EventClick, Element: elem("input", "")},
		{EventType: EventClick, Element: elem("select", "")},
		{EventType: EventClick, Element: elem("li", "Account")},
		{EventType: EventClick, Element: elem("div", "Pricing card")},
		{EventType: EventClick},
		{EventType: EventInput, Element: elem("input", ""), InputValue: "hello"},
		{EventType: EventInput, Element: elem("input", "Email")},
		{EventType: EventInput},
		{EventType: EventNavigate, PageURL: "https://example.com/cart"},
		{EventType: EventScroll},
		{EventType: EventType("drag")},
	}

	type line struct {
		Event       UserEvent `json:"event"`
		Description string    `json:"description"`
	}
	lines := make([]line, 0, len(events))
	for _, ev := range events {
		lines = append(lines, line{Event: ev, Description: Describe(ev)})
	}

	data, err := json.MarshalIndent(lines, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	g := goldie.New(t)
	g.Assert(t, "describe_table", append(data, '\n'))
}

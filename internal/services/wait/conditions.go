package wait

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/vantage/internal/interfaces"
)

// Present matches when at least one element matches l
func Present(l Locator) Condition[bool] {
	return Condition[bool]{
		Description: fmt.Sprintf("presence of element located by %s", l),
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[bool], error) {
			elements, err := probe(ctx, page, l, "")
			if err != nil {
				return Outcome[bool]{}, err
			}
			if len(elements) == 0 {
				return Outcome[bool]{Observed: "no matching elements"}, nil
			}
			return Outcome[bool]{Value: true, Matched: true}, nil
		},
	}
}

// AllPresent matches when elements match l and yields how many
func AllPresent(l Locator) Condition[int] {
	return Condition[int]{
		Description: fmt.Sprintf("presence of all elements located by %s", l),
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[int], error) {
			elements, err := probe(ctx, page, l, "")
			if err != nil {
				return Outcome[int]{}, err
			}
			if len(elements) == 0 {
				return Outcome[int]{Observed: "no matching elements"}, nil
			}
			return Outcome[int]{Value: len(elements), Matched: true}, nil
		},
	}
}

// Visible matches when the first element located by l is displayed
func Visible(l Locator) Condition[bool] {
	return Condition[bool]{
		Description: fmt.Sprintf("visibility of element located by %s", l),
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[bool], error) {
			el, err := first(ctx, page, l, "")
			if err != nil {
				return Outcome[bool]{}, err
			}
			if !el.Visible {
				return Outcome[bool]{Observed: "element present but hidden"}, nil
			}
			return Outcome[bool]{Value: true, Matched: true}, nil
		},
	}
}

// AllVisible matches when at least one element matches l and all of them are displayed
func AllVisible(l Locator) Condition[int] {
	return Condition[int]{
		Description: fmt.Sprintf("visibility of all elements located by %s", l),
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[int], error) {
			elements, err := probe(ctx, page, l, "")
			if err != nil {
				return Outcome[int]{}, err
			}
			if len(elements) == 0 {
				return Outcome[int]{}, fmt.Errorf("%w: %s", ErrNoSuchElement, l)
			}
			hidden := 0
			for _, el := range elements {
				if !el.Visible {
					hidden++
				}
			}
			if hidden > 0 {
				return Outcome[int]{Observed: fmt.Sprintf("%d of %d elements hidden", hidden, len(elements))}, nil
			}
			return Outcome[int]{Value: len(elements), Matched: true}, nil
		},
	}
}

// Invisible matches when no element located by l is displayed, including when none exist
func Invisible(l Locator) Condition[bool] {
	return Condition[bool]{
		Description: fmt.Sprintf("invisibility of element located by %s", l),
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[bool], error) {
			elements, err := probe(ctx, page, l, "")
			if err != nil {
				return Outcome[bool]{}, err
			}
			for _, el := range elements {
				if el.Visible {
					return Outcome[bool]{Observed: "element still visible"}, nil
				}
			}
			return Outcome[bool]{Value: true, Matched: true}, nil
		},
	}
}

// Clickable matches when the first element located by l is displayed and enabled
func Clickable(l Locator) Condition[bool] {
	return Condition[bool]{
		Description: fmt.Sprintf("element to be clickable: %s", l),
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[bool], error) {
			el, err := first(ctx, page, l, "")
			if err != nil {
				return Outcome[bool]{}, err
			}
			switch {
			case !el.Visible:
				return Outcome[bool]{Observed: "element hidden"}, nil
			case !el.Enabled:
				return Outcome[bool]{Observed: "element disabled"}, nil
			}
			return Outcome[bool]{Value: true, Matched: true}, nil
		},
	}
}

func textCondition(l Locator, description string, match func(text string) bool) Condition[string] {
	return Condition[string]{
		Description: description,
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[string], error) {
			el, err := first(ctx, page, l, "")
			if err != nil {
				return Outcome[string]{}, err
			}
			if !match(el.Text) {
				return Outcome[string]{Observed: fmt.Sprintf("text %q", el.Text)}, nil
			}
			return Outcome[string]{Value: el.Text, Matched: true}, nil
		},
	}
}

// TextEquals matches when the trimmed text of the first element equals text
func TextEquals(l Locator, text string) Condition[string] {
	return textCondition(l, fmt.Sprintf("text of %s to be %q", l, text), func(got string) bool {
		return got == text
	})
}

// TextContains matches when the text of the first element contains text
func TextContains(l Locator, text string) Condition[string] {
	return textCondition(l, fmt.Sprintf("text %q to be present in element located by %s", text, l), func(got string) bool {
		return strings.Contains(got, text)
	})
}

func attributeCondition(l Locator, attr, description string, match func(value string) bool) Condition[string] {
	return Condition[string]{
		Description: description,
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[string], error) {
			el, err := first(ctx, page, l, attr)
			if err != nil {
				return Outcome[string]{}, err
			}
			if el.Attr == nil {
				return Outcome[string]{Observed: fmt.Sprintf("attribute %s absent", attr)}, nil
			}
			if !match(*el.Attr) {
				return Outcome[string]{Observed: fmt.Sprintf("%s=%q", attr, *el.Attr)}, nil
			}
			return Outcome[string]{Value: *el.Attr, Matched: true}, nil
		},
	}
}

// AttributeEquals matches when attr of the first element equals value
func AttributeEquals(l Locator, attr, value string) Condition[string] {
	return attributeCondition(l, attr, fmt.Sprintf("attribute %s of %s to be %q", attr, l, value), func(got string) bool {
		return got == value
	})
}

// AttributeContains matches when attr of the first element contains value
func AttributeContains(l Locator, attr, value string) Condition[string] {
	return attributeCondition(l, attr, fmt.Sprintf("attribute %s of %s to contain %q", attr, l, value), func(got string) bool {
		return strings.Contains(got, value)
	})
}

func countCondition(l Locator, description string, match func(n int) bool) Condition[int] {
	return Condition[int]{
		Description: description,
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[int], error) {
			elements, err := probe(ctx, page, l, "")
			if err != nil {
				return Outcome[int]{}, err
			}
			if !match(len(elements)) {
				return Outcome[int]{Value: len(elements), Observed: fmt.Sprintf("%d elements", len(elements))}, nil
			}
			return Outcome[int]{Value: len(elements), Matched: true}, nil
		},
	}
}

// CountEquals matches when exactly n elements match l
func CountEquals(l Locator, n int) Condition[int] {
	return countCondition(l, fmt.Sprintf("number of elements located by %s to be %d", l, n), func(got int) bool {
		return got == n
	})
}

// CountAtLeast matches when n or more elements match l
func CountAtLeast(l Locator, n int) Condition[int] {
	return countCondition(l, fmt.Sprintf("number of elements located by %s to be at least %d", l, n), func(got int) bool {
		return got >= n
	})
}

// Selected matches when the selection state of the first element equals want
func Selected(l Locator, want bool) Condition[bool] {
	return Condition[bool]{
		Description: fmt.Sprintf("element located by %s to have selection state %t", l, want),
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[bool], error) {
			el, err := first(ctx, page, l, "")
			if err != nil {
				return Outcome[bool]{}, err
			}
			if el.Selected != want {
				return Outcome[bool]{Observed: fmt.Sprintf("selected=%t", el.Selected)}, nil
			}
			return Outcome[bool]{Value: true, Matched: true}, nil
		},
	}
}

func pageCondition(description, label string, read func(ctx context.Context, page interfaces.PageInspector) (string, error), match func(string) bool) Condition[string] {
	return Condition[string]{
		Description: description,
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[string], error) {
			value, err := read(ctx, page)
			if err != nil {
				return Outcome[string]{}, err
			}
			if !match(value) {
				return Outcome[string]{Observed: fmt.Sprintf("%s %q", label, value)}, nil
			}
			return Outcome[string]{Value: value, Matched: true}, nil
		},
	}
}

func readURL(ctx context.Context, page interfaces.PageInspector) (string, error) {
	return page.Location(ctx)
}

func readTitle(ctx context.Context, page interfaces.PageInspector) (string, error) {
	return page.Title(ctx)
}

// URLEquals matches when the current URL equals url
func URLEquals(url string) Condition[string] {
	return pageCondition(fmt.Sprintf("url to be %q", url), "url", readURL, func(got string) bool { return got == url })
}

// URLContains matches when the current URL contains fraction
func URLContains(fraction string) Condition[string] {
	return pageCondition(fmt.Sprintf("url to contain %q", fraction), "url", readURL, func(got string) bool {
		return strings.Contains(got, fraction)
	})
}

// TitleEquals matches when the document title equals title
func TitleEquals(title string) Condition[string] {
	return pageCondition(fmt.Sprintf("title to be %q", title), "title", readTitle, func(got string) bool { return got == title })
}

// TitleContains matches when the document title contains fraction
func TitleContains(fraction string) Condition[string] {
	return pageCondition(fmt.Sprintf("title to contain %q", fraction), "title", readTitle, func(got string) bool {
		return strings.Contains(got, fraction)
	})
}

// scriptCondition evaluates expression, which must produce a boolean
func scriptCondition(description, expression string) Condition[bool] {
	return Condition[bool]{
		Description: description,
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[bool], error) {
			var ok bool
			if err := page.Evaluate(ctx, expression, &ok); err != nil {
				return Outcome[bool]{}, err
			}
			if !ok {
				return Outcome[bool]{Observed: "script returned false"}, nil
			}
			return Outcome[bool]{Value: true, Matched: true}, nil
		},
	}
}

// DocumentReady matches when document.readyState is complete
func DocumentReady() Condition[bool] {
	return Condition[bool]{
		Description: "document ready state to be complete",
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[bool], error) {
			var state string
			if err := page.Evaluate(ctx, "document.readyState", &state); err != nil {
				return Outcome[bool]{}, err
			}
			if state != "complete" {
				return Outcome[bool]{Observed: fmt.Sprintf("readyState %q", state)}, nil
			}
			return Outcome[bool]{Value: true, Matched: true}, nil
		},
	}
}

// JQueryIdle matches when jQuery has no active requests. Pages without jQuery match.
func JQueryIdle() Condition[bool] {
	return scriptCondition("jQuery to have no active requests",
		"(typeof window.jQuery === 'undefined') || window.jQuery.active === 0")
}

// AngularStable matches when every Angular testability reports stable. Pages without Angular match.
func AngularStable() Condition[bool] {
	return scriptCondition("Angular to be stable",
		"(typeof window.getAllAngularTestabilities !== 'function') || window.getAllAngularTestabilities().every(t => t.isStable())")
}

// JSTrue matches when expression evaluates truthy
func JSTrue(expression string) Condition[bool] {
	return scriptCondition(fmt.Sprintf("script %q to be truthy", expression), fmt.Sprintf("!!(%s)", expression))
}

// Func wraps a caller-supplied check. fn reports the value and whether it matched.
func Func[T any](description string, fn func(ctx context.Context, page interfaces.PageInspector) (T, bool, error)) Condition[T] {
	return Condition[T]{
		Description: description,
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[T], error) {
			value, ok, err := fn(ctx, page)
			if err != nil {
				return Outcome[T]{}, err
			}
			if !ok {
				return Outcome[T]{Value: value, Observed: fmt.Sprintf("%v", value)}, nil
			}
			return Outcome[T]{Value: value, Matched: true}, nil
		},
	}
}

// All matches when every condition matches in the same poll
func All(conditions ...Condition[bool]) Condition[bool] {
	descriptions := make([]string, len(conditions))
	for i, c := range conditions {
		descriptions[i] = c.Description
	}
	return Condition[bool]{
		Description: strings.Join(descriptions, " and "),
		Check: func(ctx context.Context, page interfaces.PageInspector) (Outcome[bool], error) {
			for _, c := range conditions {
				outcome, err := c.Check(ctx, page)
				if err != nil {
					return Outcome[bool]{Observed: c.Description}, err
				}
				if !outcome.Matched {
					return Outcome[bool]{Observed: fmt.Sprintf("%s: %s", c.Description, outcome.Observed)}, nil
				}
			}
			return Outcome[bool]{Value: true, Matched: true}, nil
		},
	}
}

// PageReady matches once the document has loaded and jQuery and Angular are idle
func PageReady() Condition[bool] {
	return All(DocumentReady(), JQueryIdle(), AngularStable())
}

package wait

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/vantage/internal/interfaces"
)

// By is a locator strategy
type By string

const (
	ByCSS      By = "css"
	ByXPath    By = "xpath"
	ByID       By = "id"
	ByName     By = "name"
	ByLinkText By = "link text"
)

// Locator identifies elements on the page. It is evaluated afresh on every
// poll, never bound to an element ahead of time.
type Locator struct {
	By    By
	Value string
}

func CSS(selector string) Locator    { return Locator{By: ByCSS, Value: selector} }
func XPath(expression string) Locator { return Locator{By: ByXPath, Value: expression} }
func ID(id string) Locator            { return Locator{By: ByID, Value: id} }
func Name(name string) Locator        { return Locator{By: ByName, Value: name} }
func LinkText(text string) Locator    { return Locator{By: ByLinkText, Value: text} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// jsString quotes s as a JavaScript string literal
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// findExpression returns a JavaScript expression evaluating to an array of
// the matching elements
func (l Locator) findExpression() (string, error) {
	v := jsString(l.Value)
	switch l.By {
	case ByCSS:
		return fmt.Sprintf("Array.from(document.querySelectorAll(%s))", v), nil
	case ByID:
		return fmt.Sprintf("[document.getElementById(%s)].filter(Boolean)", v), nil
	case ByName:
		return fmt.Sprintf("Array.from(document.getElementsByName(%s))", v), nil
	case ByLinkText:
		return fmt.Sprintf("Array.from(document.querySelectorAll('a')).filter(a => (a.textContent || '').trim() === %s)", v), nil
	case ByXPath:
		return fmt.Sprintf(`(() => {
  const r = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
  const out = [];
  for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i));
  return out;
})()`, v), nil
	}
	return "", fmt.Errorf("unsupported locator strategy %q", l.By)
}

// element is the state of one matched element as seen by a probe
type element struct {
	Visible  bool    `json:"visible"`
	Enabled  bool    `json:"enabled"`
	Selected bool    `json:"selected"`
	Text     string  `json:"text"`
	Attr     *string `json:"attr"`
}

const probeTemplate = `(() => {
  const attr = %s;
  return (%s).map(e => {
    const s = window.getComputedStyle(e);
    const r = e.getBoundingClientRect();
    const shown = (r.width > 0 || r.height > 0 || e.getClientRects().length > 0) &&
      s.visibility !== 'hidden' && s.display !== 'none' && parseFloat(s.opacity || '1') > 0;
    return {
      visible: shown,
      enabled: !e.disabled,
      selected: !!(e.selected || e.checked),
      text: (e.innerText !== undefined ? e.innerText : (e.textContent || '')).trim(),
      attr: attr ? (attr in e && typeof e[attr] !== 'object' && typeof e[attr] !== 'function' ? String(e[attr]) : e.getAttribute(attr)) : null
    };
  });
})()`

// probe evaluates the locator and returns the state of every match.
// attr, when set, is read as a property first and then as an attribute.
func probe(ctx context.Context, page interfaces.PageInspector, l Locator, attr string) ([]element, error) {
	find, err := l.findExpression()
	if err != nil {
		return nil, err
	}
	attrLiteral := "null"
	if attr != "" {
		attrLiteral = jsString(attr)
	}

	var elements []element
	if err := page.Evaluate(ctx, fmt.Sprintf(probeTemplate, attrLiteral, find), &elements); err != nil {
		return nil, err
	}
	return elements, nil
}

// first returns the first match or ErrNoSuchElement
func first(ctx context.Context, page interfaces.PageInspector, l Locator, attr string) (element, error) {
	elements, err := probe(ctx, page, l, attr)
	if err != nil {
		return element{}, err
	}
	if len(elements) == 0 {
		return element{}, fmt.Errorf("%w: %s", ErrNoSuchElement, l)
	}
	return elements[0], nil
}

package state

import (
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// ErrNoInlineState is returned when no inline script assigns the client state.
var ErrNoInlineState = errors.New("no inline state script found")

const stateGlobal = "__INITIAL_STATE__"

// inlineScriptBudget caps how long a single inline script may execute. Page
// scripts reference browser APIs the mock environment lacks and can spin
// before throwing.
const inlineScriptBudget = 500 * time.Millisecond

// ParseInline recovers the client state tree from raw page HTML by executing
// the inline bootstrap script in a minimal JS environment. Used when in-page
// evaluation is unavailable, e.g. after a degraded navigation.
func ParseInline(html, pageURL string) (*Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var node *Node
	doc.Find("script").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if _, external := sel.Attr("src"); external {
			return true
		}
		src := sel.Text()
		if !strings.Contains(src, stateGlobal) {
			return true
		}
		if n := runStateScript(src, pageURL); n != nil {
			node = n
			return false
		}
		return true
	})

	if node == nil {
		return nil, ErrNoInlineState
	}
	return node, nil
}

// runStateScript executes one inline script and returns the captured state
// object, or nil. The environment mocks just enough of a browser to let the
// assignment run.
func runStateScript(src, pageURL string) *Node {
	vm := goja.New()
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("document", map[string]interface{}{
		"location": map[string]interface{}{"href": pageURL},
	})
	vm.Set("location", map[string]interface{}{"href": pageURL})
	vm.Set("console", map[string]interface{}{
		"log":   func(call goja.FunctionCall) goja.Value { return nil },
		"error": func(call goja.FunctionCall) goja.Value { return nil },
	})

	timer := time.AfterFunc(inlineScriptBudget, func() {
		vm.Interrupt("script budget exceeded")
	})
	defer timer.Stop()

	if _, err := vm.RunString(src); err != nil {
		// Scripts fail routinely once they reach past the state assignment;
		// the assignment itself usually runs first, so keep going.
		log.Debug().Err(err).Msg("Inline state script raised")
	}

	val := vm.Get(stateGlobal)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}

	// Round-trip through the VM's own JSON.stringify: it drops undefined
	// members and function values that Export would surface.
	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return nil
	}
	out, err := stringify(goja.Undefined(), val)
	if err != nil {
		return nil
	}
	raw := out.String()
	if raw == "" || raw == "undefined" || raw == "null" {
		return nil
	}

	node, err := Parse([]byte(raw))
	if err != nil {
		log.Debug().Err(err).Msg("Captured state failed to parse")
		return nil
	}
	return node
}

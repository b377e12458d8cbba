// internal/dom/query.go
package dom

// Walk visits root and its descendants in document (pre-)order. Returning false
// from fn stops the walk; Walk then returns false as well.
func Walk(root Element, fn func(Element) bool) bool {
	if root == nil {
		return true
	}
	if !fn(root) {
		return false
	}
	for _, c := range root.Children() {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// QueryAll returns every descendant of root matching sel, in document order.
// root itself is never included.
func QueryAll(root Element, sel Selector) []Element {
	var out []Element
	if root == nil {
		return out
	}
	for _, c := range root.Children() {
		Walk(c, func(el Element) bool {
			if sel.Match(el) {
				out = append(out, el)
			}
			return true
		})
	}
	return out
}

// QueryFirst returns the first descendant of root matching sel, or nil.
func QueryFirst(root Element, sel Selector) Element {
	var found Element
	if root == nil {
		return nil
	}
	for _, c := range root.Children() {
		done := !Walk(c, func(el Element) bool {
			if sel.Match(el) {
				found = el
				return false
			}
			return true
		})
		if done {
			break
		}
	}
	return found
}

// QueryOutermost returns the descendants of root matching sel that have no matching
// ancestor below root. Matches nested inside another match are skipped, so summing
// their heights never double counts.
func QueryOutermost(root Element, sel Selector) []Element {
	var out []Element
	if root == nil {
		return out
	}
	var visit func(el Element)
	visit = func(el Element) {
		if sel.Match(el) {
			out = append(out, el)
			return
		}
		for _, c := range el.Children() {
			visit(c)
		}
	}
	for _, c := range root.Children() {
		visit(c)
	}
	return out
}

// Contains reports whether descendant is el or lies inside el.
func Contains(el, descendant Element) bool {
	for cur := descendant; cur != nil; cur = cur.Parent() {
		if cur == el {
			return true
		}
	}
	return false
}

// ElementChildCount is the number of element children of el.
func ElementChildCount(el Element) int {
	if el == nil {
		return 0
	}
	return len(el.Children())
}

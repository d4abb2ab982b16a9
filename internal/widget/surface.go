package widget

// Surface is the boundary to whatever renders widgets. The mediation core
// never draws; when a widget is stopped with an element selector, it asks
// the surface to find that element and clear its children.
type Surface interface {
	// Find locates an element by selector.
	Find(selector string) (Element, error)
}

// Element is one node on the surface.
type Element interface {
	// RemoveChildren detaches every child node.
	RemoveChildren() error
}

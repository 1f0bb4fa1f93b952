// Package section implements the MultiSection tree produced by a parse.
//
// A MultiSection maps string keys to ordered lists of values and to ordered
// lists of child sections. Repeated keys and repeated subsection names are
// legal, and insertion order is preserved everywhere:
//
//	root := section.New[string]()
//	root.AddField("a", "1")
//	root.AddField("a", "2")
//
//	child := section.New[string]()
//	child.AddField("x", "3")
//	root.AddSection("b", child)
//
//	root.Values("a")            // ["1" "2"]
//	b, _ := root.Section("b")   // first "b" subsection
//
// Plugins only ever produce Section (string values). Hosts convert the raw
// text afterwards with Map or MapErr, which rebuild the tree with the same
// keys, ordering and nesting.
//
// The tree property (no node owned by two parents) is not enforced here; it
// is guaranteed by the handle protocol that builds the tree.
package section

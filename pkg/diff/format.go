package diff

import (
	"fmt"
	"strings"

	"github.com/odvcencio/snapvault/pkg/tree"
)

// Format produces a human-readable summary of changes.
//
// Output format:
//
//	+ /path           (added)
//	~ /path           (modified)
//	m /path Sperms    (metadata)
//	- /path           (removed)
func Format(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		var marker string
		switch c.Type {
		case Added:
			marker = "+"
		case Removed:
			marker = "-"
		case Modified:
			marker = "~"
		case Metadata:
			marker = "m"
		}
		path := c.Path
		if c.isDir() {
			path += "/"
		}
		if c.Type == Metadata {
			fmt.Fprintf(&b, "%s %s %s\n", marker, path, strings.Join(c.Attrs, ","))
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", marker, path)
	}
	return b.String()
}

func (c Change) isDir() bool {
	if c.After != nil {
		return c.After.Kind == tree.KindTree
	}
	return c.Before != nil && c.Before.Kind == tree.KindTree
}

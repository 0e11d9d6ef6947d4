package art

import (
	"fmt"
	"strings"
)

// PrintDiagram renders the node structure for debugging. The format is not
// stable.
func (t *Tree[V]) PrintDiagram() string {
	if t.root == nil {
		return "(empty)\n"
	}
	var sb strings.Builder
	printNode(&sb, t.root, "")
	return sb.String()
}

func printNode[V any](sb *strings.Builder, n node[V], indent string) {
	h := n.hdr()
	fmt.Fprintf(sb, "%s[%d] level=%d prefix=%016x\n", n.kind(), n.childCount(), h.nodeLevel, h.nodeKey&prefixMask(h.nodeLevel))
	remaining := n.childCount()
	n.eachChild(func(b uint8, s *slot[V]) {
		remaining--
		branch, next := "├── ", "│   "
		if remaining == 0 {
			branch, next = "└── ", "    "
		}
		if h.nodeLevel == 0 {
			fmt.Fprintf(sb, "%s%s%02x = %v\n", indent, branch, b, s.value)
			return
		}
		fmt.Fprintf(sb, "%s%s%02x ", indent, branch, b)
		printNode(sb, s.child, indent+next)
	})
}

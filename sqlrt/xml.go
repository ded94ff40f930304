package sqlrt

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// The emitted code for @x.value('/a/b', 'NVARCHAR(50)') and friends calls
// these string-in/string-out helpers. The path syntax is the subset the
// source procedures actually use: /root/child, /root/child/@attr, and a
// trailing [n] index (1-based).

type xmlNode struct {
	name     string
	text     string
	attrs    map[string]string
	children []*xmlNode
}

func parseXML(s string) *xmlNode {
	s = strings.TrimSpace(s)
	if s == "" || !strings.HasPrefix(s, "<") {
		return nil
	}
	dec := xml.NewDecoder(strings.NewReader(s))
	var root, cur *xmlNode
	var stack []*xmlNode
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local, attrs: make(map[string]string)}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
			}
			if cur != nil {
				cur.children = append(cur.children, n)
			}
			if root == nil {
				root = n
			}
			stack = append(stack, cur)
			cur = n
		case xml.EndElement:
			if len(stack) > 0 {
				cur = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if cur != nil {
				if txt := strings.TrimSpace(string(t)); txt != "" {
					cur.text += txt
				}
			}
		}
	}
	return root
}

type pathStep struct {
	name  string
	attr  string
	index int // 1-based, 0 = all
}

func parsePath(p string) []pathStep {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	var steps []pathStep
	for _, part := range strings.Split(p, "/") {
		st := pathStep{}
		if strings.HasPrefix(part, "@") {
			st.attr = part[1:]
			steps = append(steps, st)
			continue
		}
		if i := strings.Index(part, "["); i >= 0 && strings.HasSuffix(part, "]") {
			idx := part[i+1 : len(part)-1]
			st.name = part[:i]
			if n, err := strconv.Atoi(idx); err == nil {
				st.index = n
			}
		} else {
			st.name = part
		}
		steps = append(steps, st)
	}
	return steps
}

func walkPath(root *xmlNode, steps []pathStep) ([]*xmlNode, string) {
	if root == nil || len(steps) == 0 {
		return nil, ""
	}
	nodes := []*xmlNode{root}
	// The first step names the root element itself.
	if steps[0].name != "" && !strings.EqualFold(steps[0].name, root.name) {
		return nil, ""
	}
	for i, st := range steps {
		if i == 0 && st.name != "" {
			continue
		}
		if st.attr != "" {
			if len(nodes) == 0 {
				return nil, ""
			}
			return nil, nodes[0].attrs[st.attr]
		}
		var next []*xmlNode
		for _, n := range nodes {
			matched := 0
			for _, c := range n.children {
				if strings.EqualFold(c.name, st.name) {
					matched++
					if st.index == 0 || st.index == matched {
						next = append(next, c)
					}
				}
			}
		}
		nodes = next
	}
	return nodes, ""
}

// XMLValue implements .value(): the text of the first node (or attribute)
// matched by path, else "".
func XMLValue(xmlStr, path string) string {
	nodes, attr := walkPath(parseXML(xmlStr), parsePath(path))
	if attr != "" {
		return attr
	}
	if len(nodes) > 0 {
		return nodes[0].text
	}
	return ""
}

// XMLExist implements .exist(): true when path matches at least one node.
func XMLExist(xmlStr, path string) bool {
	nodes, attr := walkPath(parseXML(xmlStr), parsePath(path))
	return attr != "" || len(nodes) > 0
}

// XMLQuery implements .query(): the matched fragments re-serialized.
func XMLQuery(xmlStr, path string) string {
	nodes, _ := walkPath(parseXML(xmlStr), parsePath(path))
	var b strings.Builder
	for _, n := range nodes {
		serialize(n, &b)
	}
	return b.String()
}

// XMLNodes implements .nodes(): one map per matched node, child name → text.
func XMLNodes(xmlStr, path string) []map[string]string {
	nodes, _ := walkPath(parseXML(xmlStr), parsePath(path))
	var out []map[string]string
	for _, n := range nodes {
		m := make(map[string]string)
		for _, c := range n.children {
			m[c.name] = c.text
		}
		out = append(out, m)
	}
	return out
}

// XMLModify implements the replace-value form of .modify() for a text node.
func XMLModify(xmlStr, path, newValue string) string {
	root := parseXML(xmlStr)
	nodes, _ := walkPath(root, parsePath(path))
	if len(nodes) > 0 {
		nodes[0].text = newValue
	}
	if root == nil {
		return xmlStr
	}
	var b strings.Builder
	serialize(root, &b)
	return b.String()
}

func serialize(n *xmlNode, b *strings.Builder) {
	b.WriteString("<" + n.name)
	for k, v := range n.attrs {
		b.WriteString(` ` + k + `="` + xmlEscape(v) + `"`)
	}
	if len(n.children) == 0 && n.text == "" {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
	b.WriteString(xmlEscape(n.text))
	for _, c := range n.children {
		serialize(c, b)
	}
	b.WriteString("</" + n.name + ">")
}

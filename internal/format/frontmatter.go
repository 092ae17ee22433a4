package format

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/vertext/internal/models"
)

// fence opens and closes the frontmatter block.
const fence = "---"

// splitFrontmatter separates the YAML block (between a leading "---" line and
// the next "---" line) from the body. ok is false when the text does not open
// with a fence or the block is never closed.
func splitFrontmatter(raw string) (block, body string, ok bool) {
	first, rest, found := strings.Cut(raw, "\n")
	if !found || !isFence(first) {
		return "", "", false
	}

	offset := 0
	for {
		line, next, more := strings.Cut(rest[offset:], "\n")
		if isFence(line) {
			if !more {
				next = ""
			}
			return rest[:offset], next, true
		}
		if !more {
			return "", "", false
		}
		offset += len(line) + 1
	}
}

func isFence(line string) bool {
	return strings.TrimRight(line, " \t\r") == fence
}

func parseFrontmatter(raw string) Result {
	block, body, ok := splitFrontmatter(raw)
	if !ok {
		return Result{Content: raw}
	}

	meta, err := decodeMeta(block)
	if err != nil {
		return Result{Content: raw, Diagnostic: err}
	}
	return Result{Meta: meta, Content: body, HasMeta: true}
}

// decodeMeta reads the restricted frontmatter schema: a mapping of scalars plus
// the flat string list "categories". Unknown keys are ignored.
func decodeMeta(block string) (models.Meta, error) {
	var meta models.Meta

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(block), &root); err != nil {
		return meta, fmt.Errorf("format: decode frontmatter: %w", err)
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return meta, nil
		}
		doc = doc.Content[0]
	}
	switch {
	case doc.Kind == 0, isNull(doc):
		return meta, nil
	case doc.Kind != yaml.MappingNode:
		return meta, errors.New("format: decode frontmatter: block is not a mapping")
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		val := deref(doc.Content[i+1])

		var dst *string
		switch key {
		case "title":
			dst = &meta.Title
		case "date":
			dst = &meta.Date
		case "description":
			dst = &meta.Description
		case "summary":
			dst = &meta.Summary
		case "slug":
			dst = &meta.Slug
		case "id":
			dst = &meta.ID
		case "categories":
			list, err := stringList(val)
			if err != nil {
				return models.Meta{}, fmt.Errorf("format: decode frontmatter: %s: %w", key, err)
			}
			meta.Categories = list
			continue
		default:
			continue
		}

		s, err := scalar(val)
		if err != nil {
			return models.Meta{}, fmt.Errorf("format: decode frontmatter: %s: %w", key, err)
		}
		*dst = s
	}
	return meta, nil
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func scalar(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	if isNull(n) {
		return "", nil
	}
	return n.Value, nil
}

func stringList(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		s, _ := scalar(n)
		if s == "" {
			return nil, nil
		}
		return []string{s}, nil
	case yaml.SequenceNode:
		var out []string
		for _, item := range n.Content {
			s, err := scalar(deref(item))
			if err != nil {
				return nil, err
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("line %d: expected a list of strings", n.Line)
}

func serializeFrontmatter(m models.Meta, content string) (string, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	put := func(key string, value *yaml.Node) {
		root.Content = append(root.Content, str(key), value)
	}

	put("title", str(m.Title))
	put("date", str(m.Date))
	if cats := nonEmpty(m.Categories); len(cats) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, c := range cats {
			seq.Content = append(seq.Content, str(c))
		}
		put("categories", seq)
	}
	optional := [...]struct{ key, value string }{
		{"summary", m.Summary},
		{"slug", m.Slug},
		{"description", m.Description},
		{"id", m.ID},
	}
	for _, f := range optional {
		if f.value != "" {
			put(f.key, str(f.value))
		}
	}

	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("format: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("format: encode frontmatter: %w", err)
	}
	buf.WriteString(fence + "\n")
	buf.WriteString(content)
	return buf.String(), nil
}

// str builds a string scalar. The explicit tag makes the encoder quote values
// such as dates or numbers that would otherwise read back as another type.
func str(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func nonEmpty(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

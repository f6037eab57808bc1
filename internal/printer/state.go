package printer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/fatih/color"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/multitab/pkg/statetree"
)

// Output formats accepted by State.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Diff modes accepted by Diff.
const (
	DiffPatch = "patch"
	DiffText  = "text"
)

// State writes v to w as indented JSON or as YAML. Map key order is kept.
func State(w io.Writer, v statetree.Value, format string) error {
	switch format {
	case "", FormatJSON:
		data, err := indentJSON(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(yamlNode(v)); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format: %s (must be '%s' or '%s')", format, FormatJSON, FormatYAML)
	}
}

func indentJSON(v statetree.Value) ([]byte, error) {
	raw, err := statetree.Encode(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func yamlNode(v statetree.Value) *yaml.Node {
	switch v.Kind() {
	case statetree.KindMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range v.Keys() {
			child, _ := v.Lookup(k)
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				yamlNode(child))
		}
		return n
	case statetree.KindArray:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range v.Elements() {
			n.Content = append(n.Content, yamlNode(e))
		}
		return n
	case statetree.KindBool:
		b, _ := v.AsBool()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
	case statetree.KindNumber:
		f, _ := v.AsNumber()
		if f == float64(int64(f)) {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(f), 10)}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(f, 'g', -1, 64)}
	case statetree.KindString:
		s, _ := v.AsString()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

// Diff writes the difference between two states. DiffPatch prints an
// RFC 7386 merge patch; DiffText prints a line diff of the indented JSON with
// added lines in green and removed lines in red.
func Diff(w io.Writer, before, after statetree.Value, mode string) error {
	switch mode {
	case "", DiffPatch:
		from, err := statetree.Encode(before)
		if err != nil {
			return err
		}
		to, err := statetree.Encode(after)
		if err != nil {
			return err
		}
		patch, err := jsonpatch.CreateMergePatch(from, to)
		if err != nil {
			return fmt.Errorf("failed to create merge patch: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", patch)
		return err
	case DiffText:
		from, err := indentJSON(before)
		if err != nil {
			return err
		}
		to, err := indentJSON(after)
		if err != nil {
			return err
		}
		return textDiff(w, string(from)+"\n", string(to)+"\n")
	default:
		return fmt.Errorf("unknown diff mode: %s (must be '%s' or '%s')", mode, DiffPatch, DiffText)
	}
}

func textDiff(w io.Writer, from, to string) error {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		prefix, c := "  ", (*color.Color)(nil)
		switch d.Type {
		case diffpatch.DiffInsert:
			prefix, c = "+ ", green
		case diffpatch.DiffDelete:
			prefix, c = "- ", red
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			var err error
			if c == nil {
				_, err = fmt.Fprint(w, prefix+line)
			} else {
				_, err = c.Fprint(w, prefix+line)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

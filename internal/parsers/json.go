package parsers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spherical-ai/hybridstore/internal/errs"
)

// JSONParser walks a decoded JSON document depth-first, emitting a
// fragment per object, per array (when IncludeArrays is set), and per
// string value longer than 20 characters. Numbers, booleans, nulls, and
// short strings appear only in their parent's summary.
type JSONParser struct {
	MaxDepth      int
	IncludeArrays bool
}

// NewJSONParser builds a JSONParser; a zero maxDepth falls back to 10.
func NewJSONParser(maxDepth int, includeArrays bool) *JSONParser {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &JSONParser{MaxDepth: maxDepth, IncludeArrays: includeArrays}
}

// ContentType identifies this parser for explicit selection.
func (p *JSONParser) ContentType() string { return "json" }

// CanParse reports whether payload decodes as JSON at all.
func (p *JSONParser) CanParse(payload []byte) bool {
	return json.Valid(payload)
}

// Parse decodes payload and walks it depth-first from the root.
func (p *JSONParser) Parse(payload []byte, resourceID string, _ map[string]any) (*ParsedResource, error) {
	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, fmt.Errorf("parsers: %w: %v", errs.ErrInvalidPayload, err)
	}

	w := &jsonWalker{maxDepth: p.MaxDepth, includeArrays: p.IncludeArrays}
	w.walk(root, "root", "", 0)

	return &ParsedResource{ResourceID: resourceID, Fragments: w.fragments}, nil
}

type jsonWalker struct {
	maxDepth      int
	includeArrays bool
	fragments     []Fragment
	order         int
}

func (w *jsonWalker) emit(f Fragment) {
	f.Order = w.order
	w.order++
	w.fragments = append(w.fragments, f)
}

// walk recurses depth-first. path is this node's own path; parentKey is
// the path of the enclosing container (empty at the root). Past
// maxDepth the walk stops silently; the enclosing summary still counts
// the elided children.
func (w *jsonWalker) walk(node any, path, parentKey string, depth int) {
	if depth > w.maxDepth {
		return
	}
	switch v := node.(type) {
	case map[string]any:
		w.walkObject(v, path, parentKey, depth)
	case []any:
		if w.includeArrays {
			w.walkArray(v, path, parentKey, depth)
		}
	case string:
		if len(v) > 20 {
			w.emit(Fragment{
				Type:      "json_value",
				Content:   v,
				ParentKey: parentKey,
				Metadata:  map[string]any{"path": path, "value_type": "string", "length": len(v)},
			})
		}
	}
}

func (w *jsonWalker) walkObject(obj map[string]any, path, parentKey string, depth int) {
	if len(obj) == 0 {
		return
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	previews := make([]string, 0, 5)
	for i, k := range keys {
		if i >= 5 {
			break
		}
		previews = append(previews, fmt.Sprintf("%s: %s", k, previewValue(obj[k])))
	}
	content := fmt.Sprintf("Object with %d properties: %s", len(keys), strings.Join(previews, ", "))
	if len(keys) > 5 {
		content += fmt.Sprintf(", … (%d more)", len(keys)-5)
	}

	w.emit(Fragment{
		Type:      "json_object",
		Content:   content,
		ParentKey: parentKey,
		Metadata:  map[string]any{"path": path, "property_count": len(keys), "depth": depth},
	})

	for _, k := range keys {
		childPath := joinDotted(path, k)
		if shouldRecurse(obj[k]) {
			w.walk(obj[k], childPath, path, depth+1)
		}
	}
}

func (w *jsonWalker) walkArray(arr []any, path, parentKey string, depth int) {
	previews := make([]string, 0, 3)
	for i, item := range arr {
		if i >= 3 {
			break
		}
		previews = append(previews, previewValue(item))
	}
	content := fmt.Sprintf("Array with %d items: %s", len(arr), strings.Join(previews, ", "))
	if len(arr) > 3 {
		content += fmt.Sprintf(", … (%d more)", len(arr)-3)
	}

	w.emit(Fragment{
		Type:      "json_array",
		Content:   content,
		ParentKey: parentKey,
		Metadata:  map[string]any{"path": path, "array_length": len(arr), "depth": depth},
	})

	for i, item := range arr {
		childPath := fmt.Sprintf("%s[%d]", path, i)
		if shouldRecurse(item) {
			w.walk(item, childPath, path, depth+1)
		}
	}
}

// shouldRecurse reports whether a value is a non-trivial structure or a
// string long enough to be its own fragment.
func shouldRecurse(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	case string:
		return len(t) > 20
	default:
		return false
	}
}

func previewValue(v any) string {
	switch t := v.(type) {
	case string:
		if len(t) > 20 {
			return t[:20] + "…"
		}
		return t
	case map[string]any:
		return fmt.Sprintf("{%d properties}", len(t))
	case []any:
		return fmt.Sprintf("[%d items]", len(t))
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func joinDotted(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

var _ Parser = (*JSONParser)(nil)

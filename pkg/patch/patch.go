// Package patch implements the JSON-Patch-style operations Boardkit uses for
// durable persistence and remote synchronization.
//
// Operations are the subset of RFC 6902 the board authority accepts: add,
// replace and remove against a board-data root. Application is forgiving in
// the direction collaboration needs: re-applying a replace or remove is
// idempotent, and removing a path that is already gone is a no-op rather
// than an error, since retried flushes must never corrupt state.
package patch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/wI2L/jsondiff"

	"github.com/boardkit/boardkit/pkg/errors"
)

// Op is the operation verb.
type Op string

// Supported operation verbs.
const (
	OpAdd     Op = "add"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Operation is one JSON-Patch operation against a board-data root.
type Operation struct {
	Op    Op     `json:"op" bson:"op"`
	Path  string `json:"path" bson:"path"`
	Value any    `json:"value,omitempty" bson:"value,omitempty"`
}

// Diff computes the operations that transform before into after. Both values
// are serialized through encoding/json first, so any JSON-compatible types
// work. The result is ordered and safe to apply with Apply.
func Diff(before, after any) ([]Operation, error) {
	src, err := json.Marshal(before)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPatch, err, "marshal before state")
	}
	dst, err := json.Marshal(after)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPatch, err, "marshal after state")
	}
	d, err := jsondiff.CompareJSON(src, dst)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPatch, err, "diff board data")
	}
	ops := make([]Operation, 0, len(d))
	for _, o := range d {
		switch o.Type {
		case jsondiff.OperationAdd, jsondiff.OperationReplace:
			ops = append(ops, Operation{Op: Op(o.Type), Path: o.Path, Value: o.Value})
		case jsondiff.OperationRemove:
			ops = append(ops, Operation{Op: OpRemove, Path: o.Path})
		default:
			// move/copy/test are never produced without diff options enabling
			// them; reject rather than silently drop if that changes.
			return nil, errors.New(errors.ErrCodeUnsupported, "unsupported diff op %q", o.Type)
		}
	}
	return ops, nil
}

// Apply applies ops in order to root, returning the patched copy. The input
// root is never mutated. Unknown verbs and malformed paths fail with
// INVALID_PATCH; removes of missing paths succeed silently.
func Apply(root map[string]any, ops []Operation) (map[string]any, error) {
	// Deep copy through JSON so callers can retry a failed queue against the
	// original snapshot.
	out, err := deepCopy(root)
	if err != nil {
		return nil, err
	}
	for i, op := range ops {
		if err := applyOne(out, op); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPatch, err, "op %d (%s %s)", i, op.Op, op.Path)
		}
	}
	return out, nil
}

func applyOne(root map[string]any, op Operation) error {
	segs, err := splitPointer(op.Path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("empty path")
	}

	parent, err := walk(root, segs[:len(segs)-1], op.Op != OpRemove)
	if err != nil {
		return err
	}
	leaf := segs[len(segs)-1]

	switch p := parent.(type) {
	case map[string]any:
		switch op.Op {
		case OpAdd, OpReplace:
			p[leaf] = op.Value
		case OpRemove:
			delete(p, leaf) // absent key is a no-op
		default:
			return fmt.Errorf("unknown op %q", op.Op)
		}
	case []any:
		idx, err := arrayIndex(leaf, len(p))
		if err != nil {
			return err
		}
		switch op.Op {
		case OpAdd, OpReplace:
			if idx == len(p) {
				return fmt.Errorf("cannot grow array through pointer parent; patch the array itself")
			}
			p[idx] = op.Value
		case OpRemove:
			return fmt.Errorf("cannot shrink array through pointer parent; patch the array itself")
		default:
			return fmt.Errorf("unknown op %q", op.Op)
		}
	case nil:
		if op.Op == OpRemove {
			return nil // parent gone, nothing to remove
		}
		return fmt.Errorf("path parent does not exist")
	default:
		return fmt.Errorf("path parent is a %T, not a container", parent)
	}
	return nil
}

// walk descends root along segs. When create is set, missing map segments
// are created as empty objects; otherwise missing segments return nil.
func walk(root map[string]any, segs []string, create bool) (any, error) {
	var cur any = root
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				if !create {
					return nil, nil
				}
				m := map[string]any{}
				c[seg] = m
				next = m
			}
			cur = next
		case []any:
			idx, err := arrayIndex(seg, len(c)-1)
			if err != nil {
				return nil, err
			}
			cur = c[idx]
		case nil:
			return nil, nil
		default:
			return nil, fmt.Errorf("segment %q addresses into a %T", seg, cur)
		}
	}
	return cur, nil
}

func arrayIndex(seg string, max int) (int, error) {
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, fmt.Errorf("array index %q: %w", seg, err)
	}
	if idx < 0 || idx > max {
		return 0, fmt.Errorf("array index %d out of range", idx)
	}
	return idx, nil
}

// splitPointer splits a JSON pointer into unescaped segments.
func splitPointer(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("pointer %q must start with /", path)
	}
	raw := strings.Split(path[1:], "/")
	segs := make([]string, len(raw))
	for i, s := range raw {
		s = strings.ReplaceAll(s, "~1", "/")
		segs[i] = strings.ReplaceAll(s, "~0", "~")
	}
	return segs, nil
}

func deepCopy(root map[string]any) (map[string]any, error) {
	if root == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPatch, err, "copy board data")
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPatch, err, "copy board data")
	}
	return out, nil
}

package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// A patch addresses one location inside the profile document with a
// dot-separated path ("constraints.max_apps_per_day",
// "projects.1.skills"). Numeric segments index arrays. Intermediate
// containers are created as needed: an object for a named segment, an array
// for a numeric one.
//
// The patch operates on the decoded JSON value tree (object, array, scalar)
// rather than on the typed struct, so the external contract stays
// path-addressed while the stored document remains strongly typed: the tree is
// re-encoded into Profile and validated before anything is persisted.

func applyPatch(p *Profile, path string, value any) (*Profile, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}

	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode profile tree: %w", err)
	}

	patched, err := setPath(tree, segments, value)
	if err != nil {
		return nil, err
	}

	tree, ok := patched.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root of the document must stay an object", ErrInvalidPatch)
	}

	raw, err = json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode patched tree: %w", err)
	}

	next := &Profile{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(next); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	if err := validatePatched(next, segments); err != nil {
		return nil, err
	}

	return next, nil
}

// validatePatched enforces the skills invariant with the agreed policy: a
// patch that rewrites the primary skill list itself must reference only known
// vocabulary entries, while patches elsewhere (typically a vocabulary shrink)
// silently drop orphaned primary skills.
func validatePatched(p *Profile, segments []string) error {
	if segments[0] == "skills" {
		vocab := make(map[string]struct{}, len(p.SkillVocab))
		for _, s := range p.SkillVocab {
			vocab[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
		}
		for _, s := range p.Skills {
			if _, ok := vocab[strings.ToLower(strings.TrimSpace(s))]; !ok {
				return fmt.Errorf("%w: skill %q is not in skill_vocab", ErrInvalidPatch, s)
			}
		}
	}

	return p.Validate()
}

func splitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPatch)
	}

	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: path %q has an empty segment", ErrInvalidPatch, path)
		}
	}
	return segments, nil
}

// setPath walks the value tree along segments and sets the final location,
// returning the (possibly replaced) node.
func setPath(node any, segments []string, value any) (any, error) {
	seg := segments[0]
	last := len(segments) == 1

	if idx, err := strconv.Atoi(seg); err == nil {
		return setArrayElement(node, idx, segments, value, last)
	}

	obj, ok := node.(map[string]any)
	if !ok {
		if node != nil {
			return nil, fmt.Errorf("%w: segment %q addresses a non-object value", ErrInvalidPatch, seg)
		}
		obj = map[string]any{}
	}

	if last {
		obj[seg] = value
		return obj, nil
	}

	child, err := setPath(obj[seg], segments[1:], value)
	if err != nil {
		return nil, err
	}
	obj[seg] = child
	return obj, nil
}

func setArrayElement(node any, idx int, segments []string, value any, last bool) (any, error) {
	if idx < 0 {
		return nil, fmt.Errorf("%w: negative array index %d", ErrInvalidPatch, idx)
	}

	arr, ok := node.([]any)
	if !ok {
		if node != nil {
			return nil, fmt.Errorf("%w: numeric segment %d addresses a non-array value", ErrInvalidPatch, idx)
		}
		arr = []any{}
	}

	// Appending one past the end grows the array; anything further is a hole.
	if idx > len(arr) {
		return nil, fmt.Errorf("%w: array index %d out of range (len %d)", ErrInvalidPatch, idx, len(arr))
	}
	if idx == len(arr) {
		arr = append(arr, nil)
	}

	if last {
		arr[idx] = value
		return arr, nil
	}

	child, err := setPath(arr[idx], segments[1:], value)
	if err != nil {
		return nil, err
	}
	arr[idx] = child
	return arr, nil
}

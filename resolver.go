package scim

import (
	"github.com/patchscim/scim/errors"
	"github.com/patchscim/scim/internal/filter"
	"github.com/patchscim/scim/schema"
)

// cursor is the Path Resolver's (C5) unit of mutation: a parent container
// plus the key (and, for one element of a multi-valued attribute, the
// index) at which a value is read, written or deleted. Referencing the
// parent rather than the node itself lets the engine distinguish "absent"
// from "present with null" and insert missing containers (spec.md §4.5).
type cursor struct {
	container map[string]interface{}
	key       string
	index     int // -1 unless this cursor addresses one element of container[key].([]interface{})
}

func (c cursor) get() interface{} {
	if c.index < 0 {
		return c.container[c.key]
	}
	arr, _ := c.container[c.key].([]interface{})
	if c.index < 0 || c.index >= len(arr) {
		return nil
	}
	return arr[c.index]
}

func (c cursor) set(v interface{}) {
	if c.index < 0 {
		c.container[c.key] = v
		return
	}
	arr, _ := c.container[c.key].([]interface{})
	if c.index < 0 || c.index >= len(arr) {
		return
	}
	arr[c.index] = v
	c.container[c.key] = arr
}

func (c cursor) deleteValue() {
	if c.index < 0 {
		delete(c.container, c.key)
		return
	}
	arr, _ := c.container[c.key].([]interface{})
	if c.index < 0 || c.index >= len(arr) {
		return
	}
	out := make([]interface{}, 0, len(arr)-1)
	out = append(out, arr[:c.index]...)
	out = append(out, arr[c.index+1:]...)
	if len(out) == 0 {
		delete(c.container, c.key)
	} else {
		c.container[c.key] = out
	}
}

// parentFrame is one candidate container a walk may currently be sitting in;
// a multi-valued complex segment without a trailing filter forks one frame
// into many (one per array element), which later segments then walk in
// parallel.
type parentFrame struct {
	container map[string]interface{}
}

// resolveTarget walks root along p, producing the cursors the patch engine
// operates on plus the AttributeDef governing the targeted value(s)
// (spec.md §4.5). create controls whether missing intermediate containers
// (and the extension object, if any) are created along the way: true for
// add/replace, false for remove.
func resolveTarget(reg schema.Registry, root map[string]interface{}, p filter.Path, create bool) ([]cursor, schema.CoreAttribute, *errors.ScimError) {
	if len(p.Segments) == 0 {
		return nil, schema.CoreAttribute{}, scimErrPtr(errors.ScimErrorInvalidPath)
	}

	parents := []parentFrame{{container: root}}
	var attr schema.CoreAttribute

	for i, seg := range p.Segments {
		last := i == len(p.Segments)-1

		var attrDef schema.CoreAttribute
		if i == 0 {
			resolved, err := reg.Resolve(seg.Attr.String())
			if err != nil {
				return nil, schema.CoreAttribute{}, asScimErr(err)
			}
			attrDef = resolved

			if seg.Attr.URI != "" && reg.IsExtension(seg.Attr.URI) {
				var next []parentFrame
				for _, par := range parents {
					extObj, ok := par.container[seg.Attr.URI].(map[string]interface{})
					if !ok {
						if !create {
							continue
						}
						extObj = map[string]interface{}{}
						par.container[seg.Attr.URI] = extObj
					}
					next = append(next, parentFrame{container: extObj})
				}
				parents = next
			}
		} else {
			sub, ok := attr.SubAttributes().ContainsAttribute(seg.Attr.Name)
			if !ok {
				return nil, schema.CoreAttribute{}, unknownAttrErr(seg.Attr.Name)
			}
			attrDef = sub
		}
		attr = attrDef

		if last {
			return resolveFinal(parents, attr, seg.Filter, p.SubAttr, create)
		}

		nextParents, scimErr := descend(parents, attr, seg.Filter, create)
		if scimErr != nil {
			return nil, schema.CoreAttribute{}, scimErr
		}
		parents = nextParents
	}

	return nil, schema.CoreAttribute{}, scimErrPtr(errors.ScimErrorInvalidPath)
}

// descend walks one intermediate segment: for a single-valued complex
// attribute it descends into (creating, if create) the nested object; for a
// multi-valued complex attribute it forks into the filter-matched elements,
// or every element when no filter is attached.
func descend(parents []parentFrame, attr schema.CoreAttribute, segFilter filter.Expression, create bool) ([]parentFrame, *errors.ScimError) {
	key := attr.Name()
	var next []parentFrame

	for _, par := range parents {
		actualKey, existing, found := caseInsensitiveLookup(par.container, key)
		if !found {
			actualKey = key
		}

		if attr.MultiValued() {
			var arr []interface{}
			if found {
				arr, _ = existing.([]interface{})
			}
			if segFilter != nil {
				matched, err := filter.EvaluateArray(segFilter, arr, attr.SubAttributes())
				if err != nil {
					return nil, invalidFilterErr(err)
				}
				if len(matched) == 0 {
					return nil, scimErrPtr(errors.ScimErrorNoTarget)
				}
				for _, idx := range matched {
					if elem, ok := arr[idx].(map[string]interface{}); ok {
						next = append(next, parentFrame{container: elem})
					}
				}
				continue
			}
			for _, elem := range arr {
				if m, ok := elem.(map[string]interface{}); ok {
					next = append(next, parentFrame{container: m})
				}
			}
			continue
		}

		var obj map[string]interface{}
		if found {
			obj, _ = existing.(map[string]interface{})
		}
		if obj == nil {
			if !create {
				continue
			}
			obj = map[string]interface{}{}
			par.container[actualKey] = obj
		}
		next = append(next, parentFrame{container: obj})
	}

	return next, nil
}

// resolveFinal produces cursors for the last segment of a path, plus an
// optional trailing bare sub-attribute, per spec.md §4.5's final bullet.
func resolveFinal(parents []parentFrame, attr schema.CoreAttribute, segFilter filter.Expression, subAttr string, create bool) ([]cursor, schema.CoreAttribute, *errors.ScimError) {
	key := attr.Name()

	if !attr.MultiValued() {
		if subAttr == "" {
			cursors := make([]cursor, 0, len(parents))
			for _, par := range parents {
				actualKey, _, found := caseInsensitiveLookup(par.container, key)
				if !found {
					actualKey = key
				}
				cursors = append(cursors, cursor{container: par.container, key: actualKey, index: -1})
			}
			return cursors, attr, nil
		}

		sub, ok := attr.SubAttributes().ContainsAttribute(subAttr)
		if !ok {
			return nil, schema.CoreAttribute{}, unknownAttrErr(subAttr)
		}
		var cursors []cursor
		for _, par := range parents {
			actualKey, existing, found := caseInsensitiveLookup(par.container, key)
			if !found {
				actualKey = key
			}
			var obj map[string]interface{}
			if found {
				obj, _ = existing.(map[string]interface{})
			}
			if obj == nil {
				if !create {
					continue
				}
				obj = map[string]interface{}{}
				par.container[actualKey] = obj
			}
			subKey, _, subFound := caseInsensitiveLookup(obj, sub.Name())
			if !subFound {
				subKey = sub.Name()
			}
			cursors = append(cursors, cursor{container: obj, key: subKey, index: -1})
		}
		return cursors, sub, nil
	}

	// Multi-valued target.
	if segFilter == nil {
		if subAttr == "" {
			cursors := make([]cursor, 0, len(parents))
			for _, par := range parents {
				actualKey, _, found := caseInsensitiveLookup(par.container, key)
				if !found {
					actualKey = key
				}
				cursors = append(cursors, cursor{container: par.container, key: actualKey, index: -1})
			}
			return cursors, attr, nil
		}

		sub, ok := attr.SubAttributes().ContainsAttribute(subAttr)
		if !ok {
			return nil, schema.CoreAttribute{}, unknownAttrErr(subAttr)
		}
		var cursors []cursor
		for _, par := range parents {
			_, existing, found := caseInsensitiveLookup(par.container, key)
			if !found {
				continue
			}
			arr, _ := existing.([]interface{})
			for _, elem := range arr {
				m, ok := elem.(map[string]interface{})
				if !ok {
					continue
				}
				subKey, _, subFound := caseInsensitiveLookup(m, sub.Name())
				if !subFound {
					subKey = sub.Name()
				}
				cursors = append(cursors, cursor{container: m, key: subKey, index: -1})
			}
		}
		return cursors, sub, nil
	}

	// Final segment carries a filter: narrow to matching elements.
	var cursors []cursor
	targetAttr := attr
	anyContainer := false
	for _, par := range parents {
		actualKey, existing, found := caseInsensitiveLookup(par.container, key)
		if !found {
			continue
		}
		anyContainer = true
		arr, _ := existing.([]interface{})
		matched, err := filter.EvaluateArray(segFilter, arr, attr.SubAttributes())
		if err != nil {
			return nil, schema.CoreAttribute{}, invalidFilterErr(err)
		}

		if subAttr == "" {
			for _, idx := range matched {
				cursors = append(cursors, cursor{container: par.container, key: actualKey, index: idx})
			}
			continue
		}

		sub, ok := attr.SubAttributes().ContainsAttribute(subAttr)
		if !ok {
			return nil, schema.CoreAttribute{}, unknownAttrErr(subAttr)
		}
		targetAttr = sub
		for _, idx := range matched {
			elem, ok := arr[idx].(map[string]interface{})
			if !ok {
				continue
			}
			subKey, _, subFound := caseInsensitiveLookup(elem, sub.Name())
			if !subFound {
				subKey = sub.Name()
			}
			cursors = append(cursors, cursor{container: elem, key: subKey, index: -1})
		}
	}

	if !anyContainer || len(cursors) == 0 {
		return nil, schema.CoreAttribute{}, scimErrPtr(errors.ScimErrorNoTarget)
	}
	return cursors, targetAttr, nil
}

func scimErrPtr(e errors.ScimError) *errors.ScimError { return &e }

func asScimErr(err error) *errors.ScimError {
	if se, ok := err.(errors.ScimError); ok {
		return &se
	}
	classified := errors.Classify(err)
	return &classified
}

func unknownAttrErr(name string) *errors.ScimError {
	e := errors.ScimErrorInvalidPath
	e.Detail += " Unknown attribute: " + name
	return &e
}

func invalidFilterErr(err error) *errors.ScimError {
	if se, ok := err.(errors.ScimError); ok {
		return &se
	}
	classified := errors.Classify(err)
	return &classified
}

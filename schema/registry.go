package schema

import (
	"strings"

	"github.com/patchscim/scim/errors"
)

// Registry is the Schema Registry (C1): it resolves attribute names to
// AttributeDef records across a primary schema and its extensions
// (ResourceType.registry builds one from schemaWithCommon and its
// SchemaExtensions), without any HTTP dependency so the patch engine can use
// it standalone.
type Registry struct {
	primary    Schema
	extensions []Schema
}

// NewRegistry builds a Registry from a primary schema and zero or more
// schema extensions (each keyed, at the resource root, by its own URI).
func NewRegistry(primary Schema, extensions ...Schema) Registry {
	return Registry{primary: primary, extensions: extensions}
}

// Extensions enumerates the registry's schema extensions.
func (r Registry) Extensions() []Schema { return r.extensions }

// Primary returns the registry's primary schema.
func (r Registry) Primary() Schema { return r.primary }

// IsExtension reports whether uri names one of the registry's extensions.
// The URI part of an attribute name is matched case-sensitively (spec.md §4.1).
func (r Registry) IsExtension(uri string) bool {
	for _, e := range r.extensions {
		if e.ID == uri {
			return true
		}
	}
	return false
}

// extensionByURI returns the extension schema for uri, if any.
func (r Registry) extensionByURI(uri string) (Schema, bool) {
	for _, e := range r.extensions {
		if e.ID == uri {
			return e, true
		}
	}
	return Schema{}, false
}

// Resolve implements C1's contract: name is either fully qualified
// ("urn:...:AttrName[.sub]") or a dotted short form against the primary
// schema ("name.givenName"). Resolve always yields a leaf/complex attribute;
// a bare extension URI with no attribute name is not resolved and yields the
// same unknown-attribute error as any other unknown name (the path resolver
// recognizes the extension container itself through IsExtension).
func (r Registry) Resolve(name string) (CoreAttribute, error) {
	uri, rest := splitURI(name, r.primary.ID, r.extensions)

	base := r.primary.Attributes
	if uri != "" {
		ext, ok := r.extensionByURI(uri)
		if !ok {
			return CoreAttribute{}, unknownAttribute(name)
		}
		base = ext.Attributes
	}

	return resolveDotted(rest, base, name)
}

// splitURI finds the longest known schema URI (primary or an extension)
// that prefixes name followed by ':', and returns it along with the
// remaining dotted path. If no known URI prefixes name, uri is "" and rest
// is the whole name (a dotted short form against the primary schema).
func splitURI(name, primaryURI string, extensions []Schema) (uri, rest string) {
	candidates := make([]string, 0, len(extensions)+1)
	candidates = append(candidates, primaryURI)
	for _, e := range extensions {
		candidates = append(candidates, e.ID)
	}

	best := ""
	for _, c := range candidates {
		if c == "" {
			continue
		}
		prefix := c + ":"
		if strings.HasPrefix(name, prefix) && len(c) > len(best) {
			best = c
		}
	}
	if best == "" {
		return "", name
	}
	return best, strings.TrimPrefix(name, best+":")
}

func resolveDotted(path string, attrs Attributes, original string) (CoreAttribute, error) {
	parts := strings.SplitN(path, ".", 2)
	attr, ok := attrs.ContainsAttribute(parts[0])
	if !ok {
		return CoreAttribute{}, unknownAttribute(original)
	}
	if len(parts) == 1 {
		return attr, nil
	}
	return resolveDotted(parts[1], attr.subAttributes, original)
}

func unknownAttribute(name string) error {
	err := errors.ScimErrorInvalidPath
	err.Detail += " Unknown attribute: " + name
	return err
}

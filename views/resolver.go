// Package views maps request paths onto stable view identifiers.
package views

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Resolver resolves a request path to the view which serves it.
type Resolver interface {
	Resolve(path string) (view string, ok bool)
}

// ViewFor resolves path, falling back to the unresolved marker so requests
// to unknown paths are still recorded under a readable name.
func ViewFor(resolver Resolver, path string) string {
	if resolver != nil {
		if view, ok := resolver.Resolve(path); ok {
			return view
		}
	}
	return Unresolved(path)
}

const unresolvedSuffix = " (unreversible url)"

// Unresolved is the view name given to paths no route matches.
func Unresolved(path string) string {
	return path + unresolvedSuffix
}

// IsUnresolved reports whether view was produced by Unresolved.
func IsUnresolved(view string) bool {
	return strings.HasSuffix(view, unresolvedSuffix)
}

// RouteResolver resolves paths against exact routes and then against prefix
// routes, longest prefix first. Lookups are insensitive of a path's leading
// slash.
//
// To keep exact lookups O(1), AddRoute stores both the leading slash inclusive
// and exclusive form of each path so Resolve does not require string
// manipulation.
type RouteResolver struct {
	routes map[string]string
	// prefixes are kept sorted by descending length.
	prefixes []prefixRoute
}

type prefixRoute struct {
	prefix string
	view   string
}

func NewRouteResolver() *RouteResolver {
	return &RouteResolver{
		routes:   map[string]string{},
		prefixes: []prefixRoute{},
	}
}

func (r *RouteResolver) Resolve(path string) (string, bool) {
	if view, ok := r.routes[path]; ok {
		return view, true
	}

	path = prependLeadingSlashIfMissing(path)
	for _, route := range r.prefixes {
		if strings.HasPrefix(path, route.prefix) {
			return route.view, true
		}
	}

	return "", false
}

// AddRoute maps an exact path to a view.
func (r *RouteResolver) AddRoute(path string, view string) error {
	if view == "" {
		return errors.New(fmt.Sprintf("AddRoute() expected non-empty view for path %s", path))
	}
	path = prependLeadingSlashIfMissing(path)
	r.routes[path] = view
	r.routes[path[1:]] = view
	return nil
}

// AddPrefix maps every path beginning with prefix to a view.
func (r *RouteResolver) AddPrefix(prefix string, view string) error {
	if view == "" {
		return errors.New(fmt.Sprintf("AddPrefix() expected non-empty view for prefix %s", prefix))
	}
	prefix = prependLeadingSlashIfMissing(prefix)
	for i, route := range r.prefixes {
		if route.prefix == prefix {
			r.prefixes[i].view = view
			return nil
		}
	}

	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, view: view})
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
	})
	return nil
}

func prependLeadingSlashIfMissing(path string) string {
	if len(path) == 0 || path[0] != '/' {
		return "/" + path
	}
	return path
}

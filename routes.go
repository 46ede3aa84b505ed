package sessionauth

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// RouteMatcher matches URL paths against a set of patterns.
//
// Supported pattern forms:
//   - Exact match: "/api/users"
//   - Prefix match: "/api/*" (matches /api and anything below it)
//   - Glob match: "/api/users/*/posts" (matches /api/users/123/posts)
//   - Deep glob: "/api/**" (matches /api/users/123/posts/456)
//   - Regex match: "^/api/v[0-9]+/.*$"
//
// Patterns are classified once at construction and are immutable afterwards.
// Lookup runs the tiers in fixed cost-ascending order: exact, prefix, glob,
// regex. The first tier that matches wins.
type RouteMatcher struct {
	patterns []string

	exact    map[string]struct{}
	prefixes []string
	globs    []globPattern
	regexes  []*regexp.Regexp
}

type globPattern struct {
	raw string
	re  *regexp.Regexp
}

// NewRouteMatcher creates a matcher from raw pattern strings. Invalid regex
// patterns are dropped with a logged warning rather than failing construction.
func NewRouteMatcher(patterns []string) *RouteMatcher {
	m := &RouteMatcher{
		patterns: patterns,
		exact:    make(map[string]struct{}),
	}
	m.classify()
	return m
}

// classify buckets each pattern by kind. First rule wins:
// leading "^" means regex, "<prefix>/*" with no other wildcard means prefix,
// any remaining "*" or "?" means glob, anything else is exact.
func (m *RouteMatcher) classify() {
	for _, pattern := range m.patterns {
		if pattern == "" {
			continue
		}

		if strings.HasPrefix(pattern, "^") {
			re, err := regexp.Compile(pattern)
			if err != nil {
				slog.Warn("invalid regex route pattern, dropping", "pattern", pattern, "err", err)
				continue
			}
			m.regexes = append(m.regexes, re)
			continue
		}

		if strings.ContainsAny(pattern, "*?") {
			if strings.HasSuffix(pattern, "/*") && !strings.ContainsAny(pattern[:len(pattern)-2], "*?") {
				m.prefixes = append(m.prefixes, pattern[:len(pattern)-2])
			} else {
				m.globs = append(m.globs, globPattern{raw: pattern, re: globToRegexp(pattern)})
			}
			continue
		}

		m.exact[pattern] = struct{}{}
	}
}

// Matches reports whether path matches any configured pattern.
func (m *RouteMatcher) Matches(path string) bool {
	_, ok := m.MatchingPattern(path)
	return ok
}

// MatchingPattern returns the first pattern that matches path, in tier order.
// Useful for debugging which rule fired.
func (m *RouteMatcher) MatchingPattern(path string) (string, bool) {
	path = canonicalPath(path)

	if _, ok := m.exact[path]; ok {
		return path, true
	}

	for _, prefix := range m.prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return prefix + "/*", true
		}
	}

	for _, g := range m.globs {
		if g.re.MatchString(path) {
			return g.raw, true
		}
	}

	for _, re := range m.regexes {
		if re.MatchString(path) {
			return re.String(), true
		}
	}

	return "", false
}

func (m *RouteMatcher) String() string {
	return fmt.Sprintf("RouteMatcher(exact=%d, prefix=%d, glob=%d, regex=%d)",
		len(m.exact), len(m.prefixes), len(m.globs), len(m.regexes))
}

// canonicalPath strips the query string and fragment and removes a trailing
// slash unless the path is exactly "/".
func canonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if i := strings.IndexByte(path, '#'); i >= 0 {
		path = path[:i]
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// globToRegexp compiles a glob pattern to an anchored regexp. "*" matches any
// run of characters including "/" (so "**" behaves as a deep wildcard) and
// "?" matches a single character.
func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// RoutePolicy resolves which authentication tier applies to a path by
// composing three matchers with strict precedence: public silences required
// and optional, required silences optional.
type RoutePolicy struct {
	required *RouteMatcher
	optional *RouteMatcher
	public   *RouteMatcher
}

// NewRoutePolicy creates a policy from pattern lists. Any list may be nil.
func NewRoutePolicy(required, optional, public []string) *RoutePolicy {
	return &RoutePolicy{
		required: NewRouteMatcher(required),
		optional: NewRouteMatcher(optional),
		public:   NewRouteMatcher(public),
	}
}

// IsPublic reports whether the path needs no authentication at all.
// Public takes highest precedence.
func (p *RoutePolicy) IsPublic(path string) bool {
	return p.public.Matches(path)
}

// IsRequired reports whether authentication is mandatory for the path.
// Always false for public paths.
func (p *RoutePolicy) IsRequired(path string) bool {
	if p.IsPublic(path) {
		return false
	}
	return p.required.Matches(path)
}

// IsOptional reports whether authentication is attempted but not enforced
// for the path. Always false for public or required paths.
func (p *RoutePolicy) IsOptional(path string) bool {
	if p.IsPublic(path) {
		return false
	}
	if p.required.Matches(path) {
		return false
	}
	return p.optional.Matches(path)
}

// RequiresAuth reports whether any credential work happens for the path.
func (p *RoutePolicy) RequiresAuth(path string) bool {
	return p.IsRequired(path) || p.IsOptional(path)
}

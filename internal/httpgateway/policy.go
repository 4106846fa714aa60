package httpgateway

import "regexp"

// AuthLevel is the outcome of matching a request against the policy table.
type AuthLevel int

const (
	// AuthNone: unauthenticated route. The gateway never produces an
	// HttpAuthValidate event for it (SPEC_FULL.md §13 decision 2) — there
	// is no synthetic response to discard, the request goes straight to
	// the business module.
	AuthNone AuthLevel = iota
	// AuthOptional: the auth module is consulted, but the gateway does
	// not itself reject on a non-2xx answer — only Required does that;
	// an Optional route still reaches the business module, which can
	// inspect whatever context the auth module attached.
	AuthOptional
	// AuthRequired: a non-2xx answer from the auth module short-circuits
	// the request, and the auth module's response is returned verbatim.
	AuthRequired
)

// policyRule matches a compiled path pattern and HTTP method to an
// AuthLevel.
type policyRule struct {
	pattern *regexp.Regexp
	method  string // "" matches any method
	level   AuthLevel
}

// PolicyTable is the configurable path-regex × method → AuthLevel table
// spec.md §4.6.4 names. Rules are evaluated in registration order; the
// first match wins. An unmatched request defaults to AuthRequired — the
// fail-closed choice for a route nobody explicitly classified.
type PolicyTable struct {
	rules []policyRule
}

// NewPolicyTable creates an empty table (everything defaults to Required).
func NewPolicyTable() *PolicyTable {
	return &PolicyTable{}
}

// Add registers a rule. pathPattern is compiled as a regexp anchored
// against the full request path; method "" matches every method.
func (t *PolicyTable) Add(pathPattern, method string, level AuthLevel) error {
	re, err := regexp.Compile("^" + pathPattern + "$")
	if err != nil {
		return err
	}
	t.rules = append(t.rules, policyRule{pattern: re, method: method, level: level})
	return nil
}

// Match returns the AuthLevel for method+path, defaulting to AuthRequired
// when nothing matches.
func (t *PolicyTable) Match(method, path string) AuthLevel {
	for _, r := range t.rules {
		if r.method != "" && r.method != method {
			continue
		}
		if r.pattern.MatchString(path) {
			return r.level
		}
	}
	return AuthRequired
}

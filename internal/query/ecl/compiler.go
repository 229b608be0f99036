package ecl

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
)

const (
	// BaseConstraint selects endoscopic procedures that have a procedure site and a method.
	BaseConstraint = "(< 71388002: << 405815000 = << 105794008, [1..*] << 363704007 = *)"

	procedureConcept  = "<< 71388002"
	procedureSiteRole = "<< 363704007"
	methodRole        = "<< 260686004"

	andOperator = " AND "
)

// Expression is a compiled ECL query. It is built once per Compile call and has
// no mutating methods.
type Expression struct {
	clauses []string
}

// Compile builds the ECL for the given search parameters. Facet keys that are
// empty or unknown contribute nothing. Each facet clause is wrapped in exactly
// one pair of parentheses and joined with AND; organ system comes before method.
func Compile(params entities.SearchParams) Expression {
	clauses := []string{BaseConstraint}

	if expr, ok := Lookup(FacetOrganSystem, params.OrganSystem); ok {
		clauses = append(clauses, attributeClause(procedureSiteRole, expr))
	}
	if expr, ok := Lookup(FacetProcedureMethod, params.ProcedureMethod); ok {
		clauses = append(clauses, attributeClause(methodRole, expr))
	}

	return Expression{clauses: clauses}
}

func attributeClause(role, value string) string {
	return "(" + procedureConcept + ": " + role + " = " + value + ")"
}

// String returns the ECL text.
func (e Expression) String() string {
	if len(e.clauses) == 0 {
		return BaseConstraint
	}
	return strings.Join(e.clauses, andOperator)
}

// Clauses returns a copy of the AND-joined clauses, base constraint first.
func (e Expression) Clauses() []string {
	if len(e.clauses) == 0 {
		return []string{BaseConstraint}
	}
	out := make([]string, len(e.clauses))
	copy(out, e.clauses)
	return out
}

// Encoded returns the ECL percent-encoded for use as a query parameter value.
func (e Expression) Encoded() string {
	return EncodeComponent(e.String())
}

// Default concept search flags sent with every query.
var defaultSearchFlags = [][2]string{
	{"activeFilter", "true"},
	{"includeLeafFlag", "false"},
	{"form", "inferred"},
}

// SearchURL assembles the concept search URL for the given endpoint. The ECL
// parameter is always last and encoded with EncodeComponent; the other
// parameters keep a fixed order so identical input yields identical output.
func SearchURL(endpoint string, params entities.SearchParams, offset, limit int) string {
	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')

	if params.Term != "" {
		b.WriteString("term=")
		b.WriteString(EncodeComponent(params.Term))
		b.WriteByte('&')
	}
	b.WriteString("offset=")
	b.WriteString(strconv.Itoa(offset))
	b.WriteString("&limit=")
	b.WriteString(strconv.Itoa(limit))
	for _, flag := range defaultSearchFlags {
		b.WriteByte('&')
		b.WriteString(flag[0])
		b.WriteByte('=')
		b.WriteString(flag[1])
	}
	b.WriteString("&ecl=")
	b.WriteString(Compile(params).Encoded())
	return b.String()
}

// ForwardURL builds the target of a forwarded concept search. Query parameters
// other than ecl are copied in sorted key order, missing default flags are
// added, and the ecl value is normalized with NormalizeInbound before being
// re-encoded. The returned error is a decode failure that was recovered from.
func ForwardURL(endpoint string, query url.Values) (string, error) {
	forwarded := url.Values{}
	for key, values := range query {
		if key == "ecl" {
			continue
		}
		forwarded[key] = append([]string(nil), values...)
	}
	for _, flag := range defaultSearchFlags {
		if !forwarded.Has(flag[0]) {
			forwarded.Set(flag[0], flag[1])
		}
	}

	target := endpoint + "?"
	encoded := strings.ReplaceAll(forwarded.Encode(), "+", "%20")
	target += encoded

	var decodeErr error
	if raw := query.Get("ecl"); raw != "" {
		var expr string
		expr, decodeErr = NormalizeInbound(raw)
		if encoded != "" {
			target += "&"
		}
		target += "ecl=" + EncodeComponent(expr)
	}
	return target, decodeErr
}

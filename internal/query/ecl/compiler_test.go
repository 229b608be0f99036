package ecl

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

const endpoint = "https://snowstorm.example.org/snomed-ct/MAIN/concepts"

func TestCompile(t *testing.T) {
	tests := []struct {
		name   string
		params entities.SearchParams
		want   string
	}{
		{
			name:   "no facets yields the base constraint only",
			params: entities.SearchParams{Term: "colon"},
			want:   BaseConstraint,
		},
		{
			name:   "organ system only",
			params: entities.SearchParams{OrganSystem: "eye"},
			want:   "(< 71388002: << 405815000 = << 105794008, [1..*] << 363704007 = *) AND (<< 71388002: << 363704007 = << 371398005)",
		},
		{
			name:   "procedure method only",
			params: entities.SearchParams{Term: "scope", ProcedureMethod: "biopsy"},
			want:   BaseConstraint + " AND (<< 71388002: << 260686004 = << 129314006)",
		},
		{
			name:   "both facets keep organ system first",
			params: entities.SearchParams{OrganSystem: "upperGi", ProcedureMethod: "removal"},
			want: BaseConstraint +
				" AND (<< 71388002: << 363704007 = << 62834003)" +
				" AND (<< 71388002: << 260686004 = << 129303008)",
		},
		{
			name:   "compound organ expression is kept verbatim",
			params: entities.SearchParams{OrganSystem: "brainAndSpinal"},
			want:   BaseConstraint + " AND (<< 71388002: << 363704007 = (<< 783207002 OR << 389079005))",
		},
		{
			name:   "unknown keys are ignored",
			params: entities.SearchParams{OrganSystem: "spleen", ProcedureMethod: "teleportation"},
			want:   BaseConstraint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compile(tt.params)
			assert.Equal(t, tt.want, got.String())
			assert.False(t, strings.HasSuffix(got.String(), "AND"))
		})
	}
}

func TestCompile_EveryOrganSystemProducesOneClause(t *testing.T) {
	for _, entry := range Entries(FacetOrganSystem) {
		t.Run(entry.Key, func(t *testing.T) {
			expr := Compile(entities.SearchParams{OrganSystem: entry.Key, ProcedureMethod: "imaging"})
			clauses := expr.Clauses()
			require.Len(t, clauses, 3)
			assert.Equal(t, "(<< 71388002: << 363704007 = "+entry.Expression+")", clauses[1])
			assert.Contains(t, clauses[2], "<< 260686004 = ")
			assert.Equal(t, 1, strings.Count(expr.String(), "<< 71388002: << 363704007 ="))
		})
	}
}

func TestExpression_ClausesIsACopy(t *testing.T) {
	expr := Compile(entities.SearchParams{OrganSystem: "eye"})
	clauses := expr.Clauses()
	clauses[0] = "tampered"
	assert.True(t, strings.HasPrefix(expr.String(), BaseConstraint))

	var zero Expression
	assert.Equal(t, BaseConstraint, zero.String())
}

func TestSearchURL(t *testing.T) {
	t.Run("includes term, paging and default flags", func(t *testing.T) {
		got := SearchURL(endpoint, entities.SearchParams{Term: "scope", ProcedureMethod: "biopsy"}, 40, 20)

		assert.True(t, strings.HasPrefix(got, endpoint+"?term=scope&offset=40&limit=20&activeFilter=true&includeLeafFlag=false&form=inferred&ecl="))
		assert.NotContains(t, got, "+")

		parsed, err := url.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, BaseConstraint+" AND (<< 71388002: << 260686004 = << 129314006)", parsed.Query().Get("ecl"))
	})

	t.Run("omits term when empty", func(t *testing.T) {
		got := SearchURL(endpoint, entities.SearchParams{}, 0, 20)
		assert.True(t, strings.HasPrefix(got, endpoint+"?offset=0&limit=20&"))
	})

	t.Run("term spaces are encoded as %20", func(t *testing.T) {
		got := SearchURL(endpoint, entities.SearchParams{Term: "upper gi"}, 0, 20)
		assert.Contains(t, got, "term=upper%20gi&")
	})

	t.Run("is deterministic", func(t *testing.T) {
		params := entities.SearchParams{Term: "biopsy of colon", OrganSystem: "lowerGi", ProcedureMethod: "biopsy"}
		assert.Equal(t, SearchURL(endpoint, params, 20, 20), SearchURL(endpoint, params, 20, 20))
	})
}

func TestEncodeComponent(t *testing.T) {
	assert.Equal(t, "%3C%3C%2071388002", EncodeComponent("<< 71388002"))
	assert.Equal(t, "a%2Bb", EncodeComponent("a+b"))
	assert.NotContains(t, EncodeComponent(BaseConstraint), "+")
}

func TestNormalizeInbound(t *testing.T) {
	t.Run("round trips an encoded expression", func(t *testing.T) {
		expr := Compile(entities.SearchParams{OrganSystem: "eye", ProcedureMethod: "biopsy"}).String()
		got, err := NormalizeInbound(EncodeComponent(expr))
		require.NoError(t, err)
		assert.Equal(t, expr, got)
	})

	t.Run("plus is an encoded space", func(t *testing.T) {
		got, err := NormalizeInbound("<<+71388002")
		require.NoError(t, err)
		assert.Equal(t, "<< 71388002", got)
	})

	t.Run("malformed encoding falls back to the raw fragment", func(t *testing.T) {
		got, err := NormalizeInbound("<<+71388002%zz")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecode))
		assert.Equal(t, "<< 71388002%zz", got)
	})
}

func TestForwardURL(t *testing.T) {
	t.Run("adds defaults and re-encodes ecl last", func(t *testing.T) {
		query := url.Values{}
		query.Set("term", "gastro scope")
		query.Set("offset", "0")
		query.Set("ecl", "<<+71388002")

		got, err := ForwardURL(endpoint, query)
		require.NoError(t, err)
		assert.Equal(t,
			endpoint+"?activeFilter=true&form=inferred&includeLeafFlag=false&offset=0&term=gastro%20scope&ecl=%3C%3C%2071388002",
			got,
		)
	})

	t.Run("keeps caller supplied flags", func(t *testing.T) {
		query := url.Values{}
		query.Set("activeFilter", "false")

		got, err := ForwardURL(endpoint, query)
		require.NoError(t, err)
		assert.Contains(t, got, "activeFilter=false")
		assert.NotContains(t, got, "ecl=")
	})

	t.Run("decode failure is reported but not fatal", func(t *testing.T) {
		query := url.Values{}
		query.Set("ecl", "%E0%A4%A")

		got, err := ForwardURL(endpoint, query)
		assert.Error(t, err)
		assert.Contains(t, got, "&ecl=%25E0%25A4%25A")
	})
}

package describe

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"taotie/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		declared string
		want     ColumnType
	}{
		{"INTEGER", Numeric},
		{"bigint", Numeric},
		{"HUGEINT", Numeric},
		{"UBIGINT", Numeric},
		{"DOUBLE", Numeric},
		{"FLOAT", Numeric},
		{"DECIMAL(10,2)", Numeric},
		{"DATE", Temporal},
		{"TIME", Temporal},
		{"TIMESTAMP", Temporal},
		{"TIMESTAMP_NS", Temporal},
		{"TIMESTAMP WITH TIME ZONE", Temporal},
		{"INTERVAL", Temporal},
		{"INTEGER[]", ListLike},
		{"VARCHAR[3]", ListLike},
		{"STRUCT(a INTEGER)[]", ListLike},
		{"VARCHAR", Textual},
		{"BOOLEAN", Textual},
		{"BLOB", Textual},
		{"UUID", Textual},
		{"STRUCT(a INTEGER[])", Textual},
		{"MAP(VARCHAR, INTEGER)", Textual},
		{"ENUM('a', 'b')", Textual},
		{"SOMETHING_NEW", Textual},
		{"", Textual},
	}
	for _, tc := range tests {
		t.Run(tc.declared, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.declared))
		})
	}
}

func TestIsBooleanIsBinary(t *testing.T) {
	assert.True(t, IsBoolean("BOOLEAN"))
	assert.True(t, IsBoolean("bool"))
	assert.False(t, IsBoolean("BOOLEAN[]"))
	assert.True(t, IsBinary("BLOB"))
	assert.True(t, IsBinary("bytea"))
	assert.False(t, IsBinary("VARCHAR"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		col  domain.Column
		want string
	}{
		{domain.Column{Name: "n", Type: "INTEGER"}, `"n"`},
		{domain.Column{Name: "price", Type: "DECIMAL(10,2)"}, `CAST("price" AS DOUBLE)`},
		{domain.Column{Name: "amount", Type: "numeric"}, `CAST("amount" AS DOUBLE)`},
		{domain.Column{Name: "ts", Type: "TIMESTAMP"}, `CAST(epoch("ts") AS DOUBLE)`},
		{domain.Column{Name: "t", Type: "TIME WITH TIME ZONE"}, `CAST(epoch(CAST("t" AS TIME)) AS DOUBLE)`},
		{domain.Column{Name: "tags", Type: "VARCHAR[]"}, `len("tags")`},
		{domain.Column{Name: "name", Type: "VARCHAR"}, `length(CAST("name" AS VARCHAR))`},
		{domain.Column{Name: "flag", Type: "BOOLEAN"}, `length(CAST("flag" AS VARCHAR))`},
		{domain.Column{Name: `we"ird`, Type: "VARCHAR"}, `length(CAST("we""ird" AS VARCHAR))`},
	}
	for _, tc := range tests {
		t.Run(tc.col.Name, func(t *testing.T) {
			got := Normalize(tc.col)
			assert.Equal(t, tc.want, got.Expr)
			assert.Equal(t, tc.col.Name, got.Name)
			assert.Equal(t, tc.col.Type, got.Declared)
		})
	}
}

func TestNormalizeAll(t *testing.T) {
	rel, err := NormalizeAll("sales", []domain.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "name", Type: "VARCHAR"},
	})
	assert.NoError(t, err)
	assert.Equal(t, `SELECT "id" AS "id", length(CAST("name" AS VARCHAR)) AS "name" FROM "sales"`, rel.SQL)
	assert.Len(t, rel.Columns, 2)

	_, err = NormalizeAll("empty", nil)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCatalog(t *testing.T) {
	stats := Catalog()
	labels := make([]string, len(stats))
	for i, s := range stats {
		labels[i] = s.Label
	}
	assert.Equal(t, []string{
		"total", "null_total", "mean", "stddev", "min", "max", "median",
		"percentile_50", "percentile_75", "percentile_90", "percentile_95", "percentile_99",
	}, labels)

	stats[0].Label = "mutated"
	assert.Equal(t, "total", Catalog()[0].Label, "Catalog returns a copy")
}

func TestCatalogApplicability(t *testing.T) {
	cols := map[string]NormalizedColumn{
		"int":  Normalize(domain.Column{Name: "int", Type: "INTEGER"}),
		"text": Normalize(domain.Column{Name: "text", Type: "VARCHAR"}),
		"bool": Normalize(domain.Column{Name: "bool", Type: "BOOLEAN"}),
		"blob": Normalize(domain.Column{Name: "blob", Type: "BLOB"}),
		"date": Normalize(domain.Column{Name: "date", Type: "DATE"}),
		"list": Normalize(domain.Column{Name: "list", Type: "INTEGER[]"}),
	}
	want := map[string][]string{
		"total":         {"int", "text", "bool", "blob", "date", "list"},
		"null_total":    {"int", "text", "bool", "blob", "date", "list"},
		"mean":          {"int"},
		"stddev":        {"int"},
		"median":        {"int"},
		"min":           {"int", "text", "date", "list"},
		"max":           {"int", "text", "date", "list"},
		"percentile_90": {"int", "text", "bool", "blob", "date", "list"},
	}

	for _, stat := range Catalog() {
		names, ok := want[stat.Label]
		if !ok {
			continue
		}
		t.Run(stat.Label, func(t *testing.T) {
			for name, col := range cols {
				assert.Equal(t, slices.Contains(names, name), stat.Applies(col), "column %s", name)
			}
		})
	}
}

func TestCatalogBuild(t *testing.T) {
	byLabel := map[string]string{}
	for _, s := range Catalog() {
		byLabel[s.Label] = s.Build(`"x"`)
	}
	assert.Equal(t, `CAST(count("x") AS DOUBLE)`, byLabel["total"])
	assert.Equal(t, `CAST(coalesce(sum(CASE WHEN "x" IS NULL THEN 1 ELSE 0 END), 0) AS DOUBLE)`, byLabel["null_total"])
	assert.Equal(t, `CAST(stddev_samp("x") AS DOUBLE)`, byLabel["stddev"])
	assert.Equal(t, `CAST(approx_quantile("x", 0.75) AS DOUBLE)`, byLabel["percentile_75"])
	assert.Equal(t, `CAST(approx_quantile("x", 0.99) AS DOUBLE)`, byLabel["percentile_99"])
}

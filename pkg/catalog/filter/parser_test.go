package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyExprMatchesAll(t *testing.T) {
	expr, err := Parse("")
	require.NoError(t, err)
	assert.Nil(t, expr)

	expr, err = Parse("   ")
	require.NoError(t, err)
	assert.Nil(t, expr)
}

func TestParseSimpleComparison(t *testing.T) {
	expr, err := Parse(`volume == "vol-a"`)
	require.NoError(t, err)

	cmp, ok := expr.(CmpExpr)
	require.True(t, ok)
	assert.Equal(t, IdentOperand{Name: "volume"}, cmp.Left)
	assert.Equal(t, "==", cmp.Op)
	assert.Equal(t, LiteralOperand{Value: "vol-a"}, cmp.Right)
}

func TestParseLabelSubquery(t *testing.T) {
	expr, err := Parse(`labels["env"] != "prod"`)
	require.NoError(t, err)

	cmp, ok := expr.(CmpExpr)
	require.True(t, ok)
	assert.Equal(t, LabelOperand{Name: "env"}, cmp.Left)
	assert.Equal(t, "!=", cmp.Op)
}

func TestParseBareAtom(t *testing.T) {
	expr, err := Parse("protected")
	require.NoError(t, err)

	cmp, ok := expr.(CmpExpr)
	require.True(t, ok)
	assert.Equal(t, IdentOperand{Name: "protected"}, cmp.Left)
	assert.Equal(t, "", cmp.Op)
}

func TestParseComparisonOperators(t *testing.T) {
	tests := []struct {
		expr string
		op   string
	}{
		{`size == 1`, "=="},
		{`size != 1`, "!="},
		{`size <= 1`, "<="},
		{`size >= 1`, ">="},
		{`size < 1`, "<"},
		{`size > 1`, ">"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			expr, err := Parse(tt.expr)
			require.NoError(t, err)
			cmp, ok := expr.(CmpExpr)
			require.True(t, ok)
			assert.Equal(t, tt.op, cmp.Op)
		})
	}
}

func TestParseNotBindsTighterThanAnd(t *testing.T) {
	expr, err := Parse(`not protected and volume == "vol-a"`)
	require.NoError(t, err)

	and, ok := expr.(AndExpr)
	require.True(t, ok)
	_, ok = and.Left.(NotExpr)
	assert.True(t, ok, "left side of 'and' should be the 'not' expression")
	_, ok = and.Right.(CmpExpr)
	assert.True(t, ok)
}

func TestParseAndBindsTighterThanOr(t *testing.T) {
	expr, err := Parse(`volume == "a" and snapshot == "b" or volume == "c"`)
	require.NoError(t, err)

	or, ok := expr.(OrExpr)
	require.True(t, ok)
	_, ok = or.Left.(AndExpr)
	assert.True(t, ok, "left side of 'or' should be the 'and' expression")
	_, ok = or.Right.(CmpExpr)
	assert.True(t, ok)
}

func TestParseComparisonBindsTighterThanNot(t *testing.T) {
	expr, err := Parse(`not size == 1`)
	require.NoError(t, err)

	not, ok := expr.(NotExpr)
	require.True(t, ok)
	_, ok = not.X.(CmpExpr)
	assert.True(t, ok, "'not' should wrap the full comparison, not just the left operand")
}

func TestParseIntAndBoolLiterals(t *testing.T) {
	expr, err := Parse(`size == 42`)
	require.NoError(t, err)
	cmp := expr.(CmpExpr)
	assert.Equal(t, LiteralOperand{Value: int64(42)}, cmp.Right)

	expr, err = Parse(`protected == True`)
	require.NoError(t, err)
	cmp = expr.(CmpExpr)
	assert.Equal(t, LiteralOperand{Value: true}, cmp.Right)

	expr, err = Parse(`protected == False`)
	require.NoError(t, err)
	cmp = expr.(CmpExpr)
	assert.Equal(t, LiteralOperand{Value: false}, cmp.Right)
}

func TestParseNegativeInt(t *testing.T) {
	expr, err := Parse(`size == -5`)
	require.NoError(t, err)
	cmp := expr.(CmpExpr)
	assert.Equal(t, LiteralOperand{Value: int64(-5)}, cmp.Right)
}

func TestParseRejectsTrailingInput(t *testing.T) {
	_, err := Parse(`volume == "a" )`)
	assert.Error(t, err)
}

func TestParseRejectsMalformedExpressions(t *testing.T) {
	tests := []string{
		`volume ==`,
		`volume = "a"`,
		`labels["env"`,
		`labels "env"]`,
		`"unterminated`,
		`volume == "a" and`,
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			assert.Error(t, err)
		})
	}
}

package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bikepass-cli/internal/model"
)

func TestEval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		want float64
	}{
		{"number", "42", 42},
		{"decimal", "3.5", 3.5},
		{"addition", "1+2+3", 6},
		{"precedence", "2+3*4", 14},
		{"parentheses", "(2+3)*4", 20},
		{"division", "10/4", 2.5},
		{"unary minus", "-5+8", 3},
		{"nested unary", "2*-3", -6},
		{"whitespace", " 1 + 2 * ( 3 - 1 ) ", 5},
		{"cost expression", "130.17+0+66.3+8.82", 205.29},
		{"chained division", "100/5/2", 10},
		{"subtraction left assoc", "10-3-2", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Eval(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"letters", "1+x"},
		{"function call", "abs(-1)"},
		{"unbalanced paren", "(1+2"},
		{"trailing garbage", "1+2)"},
		{"dangling operator", "1+"},
		{"double dot", "1..2"},
		{"division by zero", "1/0"},
		{"bare operator", "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Eval(tt.expr)
			require.Error(t, err)

			var calcErr *model.CalculationError
			assert.ErrorAs(t, err, &calcErr)
		})
	}
}

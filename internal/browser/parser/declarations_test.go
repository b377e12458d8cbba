// internal/browser/parser/declarations_test.go
package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func d(prop, val string, important bool) Declaration {
	return Declaration{Property: Property(prop), Value: Value(val), Important: important}
}

func TestParseDeclarations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Declaration
	}{
		{"Single", "padding-top: 12px", []Declaration{d("padding-top", "12px", false)}},
		{"Multiple with trailing semicolon", "padding-top: 4px; padding-bottom: 8px;", []Declaration{
			d("padding-top", "4px", false), d("padding-bottom", "8px", false),
		}},
		{"Property lowercased", "Padding-Top:1px", []Declaration{d("padding-top", "1px", false)}},
		{"Important", "padding: 2px !important", []Declaration{d("padding", "2px", true)}},
		{"Important without space", "padding: 2px!IMPORTANT", []Declaration{d("padding", "2px", true)}},
		{"Function args kept whole", "transform: matrix(0.777, 0, 0, 0.777, 0, 0); padding: 0", []Declaration{
			d("transform", "matrix(0.777, 0, 0, 0.777, 0, 0)", false), d("padding", "0", false),
		}},
		{"Semicolon in string", `content: "a;b"; color: red`, []Declaration{
			d("content", `"a;b"`, false), d("color", "red", false),
		}},
		{"Malformed parts skipped", "; ;padding 3px; :4px; margin:; padding-left: 5px", []Declaration{
			d("padding-left", "5px", false),
		}},
		{"Empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseDeclarations(tt.input))
		})
	}
}

func TestResolve(t *testing.T) {
	got := Resolve([]Declaration{
		d("padding-top", "1px", false),
		d("padding-top", "2px", false),
		d("padding-bottom", "3px", true),
		d("padding-bottom", "4px", false),
		d("padding-left", "5px", true),
		d("padding-left", "6px", true),
	})
	assert.Equal(t, Value("2px"), got["padding-top"])
	assert.Equal(t, Value("3px"), got["padding-bottom"])
	assert.Equal(t, Value("6px"), got["padding-left"])
}

func TestExpandBoxShorthand(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected [4]string // top right bottom left
	}{
		{"One value", "10px", [4]string{"10px", "10px", "10px", "10px"}},
		{"Two values", "10px 20px", [4]string{"10px", "20px", "10px", "20px"}},
		{"Three values", "1px 2px 3px", [4]string{"1px", "2px", "3px", "2px"}},
		{"Four values", "1px 2px 3px 4px", [4]string{"1px", "2px", "3px", "4px"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(ExpandBoxShorthand([]Declaration{d("padding", tt.value, false)}, "padding"))
			assert.Equal(t, Value(tt.expected[0]), got["padding-top"])
			assert.Equal(t, Value(tt.expected[1]), got["padding-right"])
			assert.Equal(t, Value(tt.expected[2]), got["padding-bottom"])
			assert.Equal(t, Value(tt.expected[3]), got["padding-left"])
			_, hasShorthand := got["padding"]
			assert.False(t, hasShorthand)
		})
	}
}

func TestExpandBoxShorthand_CascadeOrder(t *testing.T) {
	decls := ParseDeclarations("padding-top: 9px; padding: 1px; padding-bottom: 7px")
	got := Resolve(ExpandBoxShorthand(decls, "padding"))
	assert.Equal(t, Value("1px"), got["padding-top"], "later shorthand overrides earlier longhand")
	assert.Equal(t, Value("7px"), got["padding-bottom"], "later longhand overrides earlier shorthand")

	bw := Resolve(ExpandBoxShorthand(ParseDeclarations("border-width: 1px 2px"), "border-width"))
	assert.Equal(t, Value("1px"), bw["border-top-width"])
	assert.Equal(t, Value("2px"), bw["border-left-width"])

	// Five values is not a valid box shorthand and is dropped.
	assert.Empty(t, ExpandBoxShorthand(ParseDeclarations("padding: 1px 2px 3px 4px 5px"), "padding"))
}

func TestParseLength(t *testing.T) {
	const fontSize, rootFontSize, reference = 20.0, 16.0, 400.0
	tests := []struct {
		input    string
		expected float64
	}{
		{"12px", 12},
		{" 12.5PX ", 12.5},
		{"1.5em", 30},
		{"2rem", 32},
		{"10%", 40},
		{"7", 7},
		{"0", 0},
		{"-4px", -4},
		{"auto", 0},
		{"calc(1px + 2px)", 0},
		{"NaNpx", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ParseLength(tt.input, fontSize, rootFontSize, reference), 1e-9)
		})
	}
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.Equal(t, []string{"a"}, schema["required"])
}

func TestCreateSchema_Shapes(t *testing.T) {
	type args struct {
		Tags    []string `json:"tags"`
		Limit   int      `json:"limit,omitempty"`
		Skipped string   `json:"-"`
		Plain   bool
		hidden  string
	}

	schema := CreateSchema(&args{})
	props := schema["properties"].(map[string]any)

	assert.Equal(t, map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, props["tags"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["limit"])
	assert.Equal(t, map[string]any{"type": "boolean"}, props["Plain"])
	assert.NotContains(t, props, "Skipped")
	assert.NotContains(t, props, "hidden")
	assert.Equal(t, []string{"tags", "Plain"}, schema["required"])

	empty := CreateSchema("not a struct")
	assert.Equal(t, map[string]any{}, empty["properties"])
	assert.NotContains(t, empty, "required")
}

func TestValidateParameters_RequiredShapes(t *testing.T) {
	for name, req := range map[string]any{
		"go slice":   []string{"x"},
		"json slice": []any{"x"},
	} {
		t.Run(name, func(t *testing.T) {
			schema := map[string]any{
				"type":       "object",
				"properties": map[string]any{"x": map[string]any{"type": "integer"}},
				"required":   req,
			}

			assert.NoError(t, ValidateParameters(map[string]any{"x": 5.0}, schema))

			err := ValidateParameters(map[string]any{}, schema)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "x", vErr.Field)
		})
	}
}

func TestValidateParameters_WrongType(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{"q": map[string]any{"type": "string"}},
	}
	err := ValidateParameters(map[string]any{"q": 3.0}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type string")
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", out)

	out, err = RenderTemplate("<recall>{{ join \"\\n\" .items }}</recall>", map[string]any{"items": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "<recall>a\nb</recall>", out)

	out, err = RenderTemplate("{{ default \"none\" .missing }}", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "none", out)
}

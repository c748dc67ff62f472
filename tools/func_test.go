package tools_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/chatmodel"
	"github.com/effective-security/mcpchat/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherInput struct {
	City string `json:"city" jsonschema:"title=City,description=City to get the weather for"`
}

type weatherOutput struct {
	Forecast string `json:"forecast"`
}

func newWeatherTool(t *testing.T) tools.ITool {
	t.Helper()
	tool, err := tools.NewFunc("get_weather", "Returns the forecast for a city.",
		func(ctx context.Context, in *weatherInput) (*weatherOutput, error) {
			if in.City == "" {
				return nil, errors.New("city is required")
			}
			return &weatherOutput{Forecast: "sunny in " + in.City}, nil
		})
	require.NoError(t, err)
	return tool
}

func Test_FuncTool(t *testing.T) {
	tool := newWeatherTool(t)
	assert.Equal(t, "get_weather", tool.Name())
	assert.Equal(t, "Returns the forecast for a city.", tool.Description())

	js, err := json.Marshal(tool.Parameters())
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(js, &m))
	assert.Equal(t, "object", m["type"])
	props := m["properties"].(map[string]any)
	assert.Contains(t, props, "city")
}

func Test_FuncToolCall(t *testing.T) {
	ctx := context.Background()
	tool := newWeatherTool(t)

	res, err := tool.Call(ctx, `{"city": "Paris"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"forecast":"sunny in Paris"}`, res)

	// fenced model output is tolerated
	res, err = tool.Call(ctx, "```json\n{\"city\": \"Oslo\"}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"forecast":"sunny in Oslo"}`, res)

	// sloppy model JSON is repaired
	res, err = tool.Call(ctx, `{"city": "Bergen",}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"forecast":"sunny in Bergen"}`, res)

	// run errors surface as Go errors
	_, err = tool.Call(ctx, `{"city": ""}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city is required")
}

func Test_FuncToolBadInput(t *testing.T) {
	tool := newWeatherTool(t)
	_, err := tool.Call(context.Background(), "this is not json at all")
	assert.ErrorIs(t, err, chatmodel.ErrFailedUnmarshalInput)
}

func Test_GetDescriptions(t *testing.T) {
	tool := newWeatherTool(t)
	desc := tools.GetDescriptions(tool)
	assert.Contains(t, desc, "```json")
	assert.Contains(t, desc, "get_weather")
	assert.Contains(t, desc, "Returns the forecast for a city.")
}

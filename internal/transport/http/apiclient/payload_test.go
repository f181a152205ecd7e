package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_ZeroValueIsNull(t *testing.T) {
	var p Payload
	assert.True(t, p.IsNull())
	assert.Equal(t, PayloadNull, p.Kind())
	assert.Equal(t, "null", p.Kind().String())

	var target map[string]any
	require.NoError(t, p.Decode(&target))
	assert.Nil(t, target)

	v, err := p.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPayload_JSON(t *testing.T) {
	p := jsonPayload([]byte(`{"count":2,"results":[{"id":1},{"id":2}]}`))

	var page struct {
		Count   int              `json:"count"`
		Results []map[string]int `json:"results"`
	}
	require.NoError(t, p.Decode(&page))
	assert.Equal(t, 2, page.Count)
	assert.Equal(t, 2, page.Results[1]["id"])

	v, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, float64(2), v.(map[string]any)["count"])
}

func TestPayload_Text(t *testing.T) {
	p := textPayload([]byte("id,name\n1,Laptop\n"))
	assert.Equal(t, PayloadText, p.Kind())
	assert.Equal(t, "id,name\n1,Laptop\n", p.Text())

	var target any
	assert.ErrorIs(t, p.Decode(&target), ErrNotJSON)

	v, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Laptop\n", v)
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		json string
		want bool
	}{
		{`""`, false},
		{`"x"`, true},
		{`"0"`, true},
		{`0`, false},
		{`-0.0`, false},
		{`0.01`, true},
		{`-3`, true},
		{`true`, true},
		{`false`, false},
		{`null`, false},
		{`{}`, true},
		{`[]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			assert.Equal(t, tt.want, truthy(gjson.Parse(tt.json)))
		})
	}
}

func TestFieldAliases_FirstTruthyWins(t *testing.T) {
	item := gjson.Parse(`{"price": 0, "close": "", "lastPrice": 12.5, "currentPrice": 99}`)

	fields := fieldAliases{"price", "close", "lastPrice", "currentPrice"}
	assert.Equal(t, 12.5, fields.Float(item, -1))

	v, ok := fields.lookup(item)
	require.True(t, ok)
	assert.Equal(t, 12.5, v.Num)
}

func TestFieldAliases_Fallbacks(t *testing.T) {
	item := gjson.Parse(`{"name": "", "price": null}`)

	assert.Equal(t, "default", fieldAliases{"name", "Name"}.String(item, "default"))
	assert.Equal(t, 7.0, fieldAliases{"price"}.Float(item, 7))
	assert.Nil(t, fieldAliases{"price"}.Optional(item))
}

func TestFieldAliases_NonObjectItem(t *testing.T) {
	for _, raw := range []string{`"TCS"`, `[{"symbol": "TCS"}]`, `42`, ``} {
		_, ok := fieldAliases{"symbol"}.lookup(gjson.Parse(raw))
		assert.False(t, ok, raw)
	}
}

func TestFieldAliases_NumericStrings(t *testing.T) {
	item := gjson.Parse(`{"price": "1,234", "close": "1234.5", "volume": "abc"}`)

	assert.Equal(t, 0.0, fieldAliases{"price"}.Float(item, 9), "unparseable truthy strings become zero")
	assert.Equal(t, 1234.5, fieldAliases{"close"}.Float(item, 0))

	vol := fieldAliases{"volume"}.Optional(item)
	require.NotNil(t, vol)
	assert.Equal(t, 0.0, *vol)
}

func TestFieldAliases_StringFromNumber(t *testing.T) {
	item := gjson.Parse(`{"time": 1710495000}`)
	assert.Equal(t, "1710495000", priceTimeFields.String(item, ""))
}

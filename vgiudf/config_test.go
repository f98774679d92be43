// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRoundTrip(t *testing.T) {
	cfg := Config{
		"alpha":   1.5,
		"count":   int64(42),
		"name":    "pig_latinnify",
		"enabled": true,
		"nested": Config{
			"ratio": 0.25,
			"inner": Config{
				"depth": int64(2),
				"label": "leaf",
			},
		},
	}

	payload, err := EncodeConfig(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	decoded, err := DecodeConfig(payload)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}

func TestConfigCanonicalization(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int", int(7), int64(7)},
		{"int32", int32(-3), int64(-3)},
		{"int8", int8(5), int64(5)},
		{"uint16", uint16(9), int64(9)},
		{"uint64", uint64(12), int64(12)},
		{"float32", float32(2.5), float64(2.5)},
		{"map", map[string]any{"k": int64(1)}, Config{"k": int64(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := EncodeConfig(Config{"v": tt.in})
			require.NoError(t, err)

			decoded, err := DecodeConfig(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decoded["v"])
		})
	}
}

func TestConfigEmpty(t *testing.T) {
	payload, err := EncodeConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, payload)

	payload, err = EncodeConfig(Config{})
	require.NoError(t, err)
	assert.Nil(t, payload)

	decoded, err := DecodeConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestConfigDeterministicPayload(t *testing.T) {
	cfg := Config{"b": int64(2), "a": int64(1), "c": Config{"z": true, "y": "x"}}

	first, err := EncodeConfig(cfg)
	require.NoError(t, err)
	second, err := EncodeConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConfigEncodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		keyPath string
	}{
		{"slice value", Config{"values": []int64{1, 2, 3}}, "values"},
		{"null value", Config{"missing": nil}, "missing"},
		{"struct value", Config{"obj": struct{ X int }{1}}, "obj"},
		{"nested slice", Config{"outer": Config{"inner": []string{"a"}}}, "outer.inner"},
		{"uint64 overflow", Config{"big": uint64(1) << 63}, "big"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeConfig(tt.cfg)
			require.Error(t, err)

			var pe *PluginError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, FailureEncoding, pe.Kind)
			assert.Contains(t, err.Error(), FailureMarker)
			assert.Contains(t, pe.Message, tt.keyPath)
		})
	}
}

func TestDecodeConfigGarbage(t *testing.T) {
	_, err := DecodeConfig([]byte("not an arrow stream"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlugin))
}

type testKwargs struct {
	Capitalize bool    `udf:"capitalize,default=false"`
	Threshold  float64 `udf:"threshold"`
	Limit      int64   `udf:"limit,default=10"`
	Label      *string `udf:"label"`
	Extra      Config  `udf:"extra"`
}

func TestKwargsDecode(t *testing.T) {
	payload, err := EncodeConfig(Config{
		"capitalize": true,
		"threshold":  0.5,
		"label":      "hi",
		"extra":      Config{"k": int64(1)},
	})
	require.NoError(t, err)

	var k testKwargs
	require.NoError(t, decodeConfigInto(payload, &k))
	assert.True(t, k.Capitalize)
	assert.Equal(t, 0.5, k.Threshold)
	assert.Equal(t, int64(10), k.Limit, "absent key takes its default")
	require.NotNil(t, k.Label)
	assert.Equal(t, "hi", *k.Label)
	assert.Equal(t, Config{"k": int64(1)}, k.Extra)
}

func TestKwargsDecodeEmptyPayload(t *testing.T) {
	var k testKwargs
	err := decodeConfigInto(nil, &k)
	require.Error(t, err, "threshold has no default and must be present")
	assert.Contains(t, err.Error(), `missing required kwargs key "threshold"`)

	type optional struct {
		Capitalize bool `udf:"capitalize,default=true"`
	}
	var o optional
	require.NoError(t, decodeConfigInto(nil, &o))
	assert.True(t, o.Capitalize)
}

func TestKwargsDecodeStrict(t *testing.T) {
	t.Run("kind mismatch", func(t *testing.T) {
		payload, err := EncodeConfig(Config{"threshold": true})
		require.NoError(t, err)

		var k testKwargs
		err = decodeConfigInto(payload, &k)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `kwargs key "threshold": expected float, got boolean`)
	})

	t.Run("unknown key", func(t *testing.T) {
		payload, err := EncodeConfig(Config{"threshold": 0.5, "surprise": int64(1)})
		require.NoError(t, err)

		var k testKwargs
		err = decodeConfigInto(payload, &k)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unexpected kwargs key "surprise"`)
	})

	t.Run("string for integer", func(t *testing.T) {
		payload, err := EncodeConfig(Config{"threshold": 0.5, "limit": "many"})
		require.NoError(t, err)

		var k testKwargs
		err = decodeConfigInto(payload, &k)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `kwargs key "limit": expected integer, got string`)
	})
}

func TestKwargsSchemaReflection(t *testing.T) {
	schema, err := kwargsSchema(reflect.TypeOf(struct{}{}))
	require.NoError(t, err)
	assert.Zero(t, schema.NumFields())

	_, err = kwargsSchema(nil)
	require.Error(t, err)

	schema, err = kwargsSchema(reflect.TypeOf(testKwargs{}))
	require.NoError(t, err)
	require.Equal(t, 5, schema.NumFields())

	byName := map[string]bool{}
	for i := range schema.NumFields() {
		byName[schema.Field(i).Name] = true
	}
	for _, want := range []string{"capitalize", "threshold", "limit", "label", "extra"} {
		assert.True(t, byName[want], "schema field %q", want)
	}

	labelIdx := schema.FieldIndices("label")
	require.Len(t, labelIdx, 1)
	assert.True(t, schema.Field(labelIdx[0]).Nullable, "pointer field is nullable")
}

// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package exprlib

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/Query-farm/vgi-udf/vgiudf"
)

type pigLatinKwargs struct {
	Capitalize bool `udf:"capitalize,default=false"`
}

// pigLatin moves the leading character to the end and appends "ay".
func pigLatin(value string) string {
	r := []rune(value)
	if len(r) == 0 {
		return ""
	}
	return string(r[1:]) + string(r[0]) + "ay"
}

func pigLatinnify(cc *vgiudf.CallContext, in []vgiudf.Column, kwargs pigLatinKwargs) (vgiudf.Column, error) {
	ca, ok := in[0].Data.(*array.String)
	if !ok {
		return vgiudf.Column{}, fmt.Errorf("pig_latinnify expects a string column, got %s", in[0].DataType())
	}

	b := array.NewStringBuilder(cc.Mem)
	defer b.Release()
	b.Reserve(ca.Len())

	for i := range ca.Len() {
		if ca.IsNull(i) {
			b.AppendNull()
			continue
		}
		out := pigLatin(ca.Value(i))
		if kwargs.Capitalize {
			out = strings.ToUpper(out)
		}
		b.Append(out)
	}
	return vgiudf.NewColumn(in[0].Name, b.NewArray()), nil
}

type appendKwargs struct {
	FloatArg   float64       `udf:"float_arg"`
	IntegerArg int64         `udf:"integer_arg"`
	StringArg  string        `udf:"string_arg"`
	BooleanArg bool          `udf:"boolean_arg"`
	DictArg    vgiudf.Config `udf:"dict_arg"`
}

func appendKwargsFn(cc *vgiudf.CallContext, in []vgiudf.Column, kwargs appendKwargs) (vgiudf.Column, error) {
	cc.Log(vgiudf.LogDebug, "decoded kwargs",
		vgiudf.KV{Key: "string_arg", Value: kwargs.StringArg})

	suffix := fmt.Sprintf("%v-%d-%s-%t",
		kwargs.FloatArg, kwargs.IntegerArg, kwargs.StringArg, kwargs.BooleanArg)
	if kwargs.DictArg != nil {
		suffix += "-" + renderConfig(kwargs.DictArg)
	}

	b := array.NewStringBuilder(cc.Mem)
	defer b.Release()
	b.Reserve(in[0].Len())

	for i := range in[0].Len() {
		if in[0].Data.IsNull(i) {
			b.AppendNull()
			continue
		}
		val, err := textValue(in[0].Data, i)
		if err != nil {
			return vgiudf.Column{}, err
		}
		b.Append(val + "-" + suffix)
	}
	return vgiudf.NewColumn(in[0].Name, b.NewArray()), nil
}

// textValue renders a non-null element as text, mirroring a cast to a
// string column.
func textValue(arr arrow.Array, i int) (string, error) {
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i), nil
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10), nil
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(i)), 10), nil
	case *array.Float64:
		return strconv.FormatFloat(a.Value(i), 'g', -1, 64), nil
	case *array.Float32:
		return strconv.FormatFloat(float64(a.Value(i)), 'g', -1, 32), nil
	case *array.Boolean:
		return strconv.FormatBool(a.Value(i)), nil
	default:
		return "", fmt.Errorf("append_kwargs cannot render %s values as text", arr.DataType())
	}
}

// renderConfig renders a nested config deterministically, keys sorted.
func renderConfig(cfg vgiudf.Config) string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		if nested, ok := cfg[k].(vgiudf.Config); ok {
			parts[i] = fmt.Sprintf("%s=%s", k, renderConfig(nested))
			continue
		}
		parts[i] = fmt.Sprintf("%s=%v", k, cfg[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package exprlib is a reference collection of native columnar functions
// for the vgi-udf dispatch layer: string transforms, distance measures,
// date utilities and a deliberately failing function. It doubles as the
// conformance surface for hosts: every dispatch feature (kwargs, arity,
// supertype unification, output type declarations, panic recovery) is
// exercised by at least one function here.
package exprlib

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Query-farm/vgi-udf/vgiudf"
)

// CollectionID is the identifier hosts register this collection under.
const CollectionID = "expression_lib"

// New builds the expression_lib collection.
func New() *vgiudf.Collection {
	c := vgiudf.NewCollection(CollectionID)

	vgiudf.FuncWithKwargs(c, "pig_latinnify", pigLatinnify,
		vgiudf.WithArity(1),
		vgiudf.WithOutputType(arrow.BinaryTypes.String))
	vgiudf.FuncWithKwargs(c, "append_kwargs", appendKwargsFn,
		vgiudf.WithArity(1),
		vgiudf.WithOutputType(arrow.BinaryTypes.String))
	vgiudf.Func(c, "hamming_distance", hammingDistance,
		vgiudf.WithArity(2),
		vgiudf.WithOutputType(arrow.PrimitiveTypes.Int64))
	vgiudf.Func(c, "jaccard_similarity", jaccardSimilarity,
		vgiudf.WithArity(2),
		vgiudf.WithOutputType(arrow.PrimitiveTypes.Float64))
	vgiudf.Func(c, "haversine", haversineFn,
		vgiudf.WithArity(4),
		vgiudf.WithOutputTypeFunc(haversineOutput))
	vgiudf.Func(c, "is_leap_year", isLeapYear,
		vgiudf.WithArity(1),
		vgiudf.WithOutputType(&arrow.BooleanType{}))
	vgiudf.FuncWithKwargs(c, "change_time_zone", changeTimeZone,
		vgiudf.WithArity(1))
	vgiudf.Func(c, "panic_me", panicMe,
		vgiudf.WithArity(1))

	return c
}

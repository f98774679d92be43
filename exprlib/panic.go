// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package exprlib

import "github.com/Query-farm/vgi-udf/vgiudf"

// panicMe fails by panicking instead of returning an error. The dispatcher
// recovers it into a structured native compute failure; this function
// exists so hosts can verify that.
func panicMe(*vgiudf.CallContext, []vgiudf.Column) (vgiudf.Column, error) {
	panic("not yet implemented")
}

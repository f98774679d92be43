// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package exprlib

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/Query-farm/vgi-udf/vgiudf"
)

func isLeapYear(cc *vgiudf.CallContext, in []vgiudf.Column) (vgiudf.Column, error) {
	ca, ok := in[0].Data.(*array.Date32)
	if !ok {
		return vgiudf.Column{}, fmt.Errorf("is_leap_year expects a date32 column, got %s", in[0].DataType())
	}

	b := array.NewBooleanBuilder(cc.Mem)
	defer b.Release()
	b.Reserve(ca.Len())

	for i := range ca.Len() {
		if ca.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(leapYear(ca.Value(i).ToTime().Year()))
	}
	return vgiudf.NewColumn(in[0].Name, b.NewArray()), nil
}

func leapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

type timeZoneKwargs struct {
	TZ string `udf:"tz,default=Europe/Amsterdam"`
}

// changeTimeZone reannotates a timestamp column with a new zone. The
// underlying instants are unchanged; only the zone metadata moves.
func changeTimeZone(cc *vgiudf.CallContext, in []vgiudf.Column, kwargs timeZoneKwargs) (vgiudf.Column, error) {
	ca, ok := in[0].Data.(*array.Timestamp)
	if !ok {
		return vgiudf.Column{}, fmt.Errorf("change_time_zone expects a timestamp column, got %s", in[0].DataType())
	}
	if _, err := time.LoadLocation(kwargs.TZ); err != nil {
		return vgiudf.Column{}, fmt.Errorf("unknown time zone %q: %w", kwargs.TZ, err)
	}

	inType := ca.DataType().(*arrow.TimestampType)
	outType := &arrow.TimestampType{Unit: inType.Unit, TimeZone: kwargs.TZ}

	b := array.NewTimestampBuilder(cc.Mem, outType)
	defer b.Release()
	b.Reserve(ca.Len())

	for i := range ca.Len() {
		if ca.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(ca.Value(i))
	}
	return vgiudf.NewColumn(in[0].Name, b.NewArray()), nil
}

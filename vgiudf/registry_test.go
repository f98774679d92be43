// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLocate(t *testing.T) {
	reg := NewRegistry()
	coll := NewCollection("tools")
	reg.RegisterCollection("tools", coll)

	got, err := reg.Locate(context.Background(), "tools")
	require.NoError(t, err)
	assert.Same(t, coll, got)

	_, err = reg.Locate(context.Background(), "absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `collection "absent" is not registered`)
}

func TestRegistryRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	coll := NewCollection("tools")
	reg.RegisterCollection("tools", coll)

	assert.PanicsWithValue(t, `vgiudf: collection "tools" already registered`, func() {
		reg.RegisterCollection("tools", NewCollection("tools"))
	})
	assert.Panics(t, func() {
		reg.RegisterCollection("", NewCollection("x"))
	})
	assert.Panics(t, func() {
		reg.RegisterCollection("nilcoll", nil)
	})
}

func TestRegistryCollectionsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mike"} {
		reg.RegisterCollection(id, NewCollection(id))
	}
	assert.Equal(t, []string{"alpha", "mike", "zeta"}, reg.Collections())
}

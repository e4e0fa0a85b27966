package dataops_test

import (
	"testing"

	"github.com/fwojciec/dataops"
	"github.com/stretchr/testify/assert"
)

func TestHistory(t *testing.T) {
	t.Parallel()

	t.Run("preserves submission order", func(t *testing.T) {
		t.Parallel()
		var h dataops.History
		h.Append(dataops.Exchange{Input: "first"})
		h.Append(dataops.Exchange{Input: "second"})

		entries := h.Entries()
		assert.Equal(t, 2, h.Len())
		assert.Equal(t, "first", entries[0].Input)
		assert.Equal(t, "second", entries[1].Input)
	})

	t.Run("entries is a copy", func(t *testing.T) {
		t.Parallel()
		var h dataops.History
		h.Append(dataops.Exchange{Input: "first"})
		entries := h.Entries()
		entries[0].Input = "changed"
		assert.Equal(t, "first", h.Entries()[0].Input)
	})

	t.Run("clear empties", func(t *testing.T) {
		t.Parallel()
		var h dataops.History
		h.Append(dataops.Exchange{Input: "first"})
		h.Clear()
		assert.Equal(t, 0, h.Len())
		assert.Empty(t, h.Entries())
	})
}

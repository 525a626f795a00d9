package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameStringSlice(t *testing.T) {
	assert.True(t, SameStringSlice([]string{"a", "b"}, []string{"b", "a"}))
	assert.True(t, SameStringSlice(nil, nil))
	assert.False(t, SameStringSlice([]string{"a"}, []string{"a", "b"}))
	assert.False(t, SameStringSlice([]string{"a", "x"}, []string{"a", "b"}))
}

func TestDeref(t *testing.T) {
	s := "value"
	assert.Equal(t, "value", Deref(&s))
	assert.Equal(t, "", Deref[string](nil))

	n := 7
	assert.Equal(t, 7, Deref(&n))
	assert.Equal(t, 0, Deref[int](nil))
}

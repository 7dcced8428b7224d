package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNames(t *testing.T) {
	assert.Equal(t, []string{"go", "gin", "gorm"},
		NormalizeNames([]string{" go ", "gin", "go", "", "  ", "gorm"}))
	assert.Empty(t, NormalizeNames(nil))
	assert.Equal(t, []string{"Go", "go"}, NormalizeNames([]string{"Go", "go"}))
}

func TestStringSetDiff(t *testing.T) {
	a := map[string]bool{"x": true, "y": true, "z": true}
	b := map[string]bool{"y": true}

	diff := StringSetDiff(a, b)
	assert.ElementsMatch(t, []string{"x", "z"}, diff)

	assert.Empty(t, StringSetDiff(a, a))
	assert.Empty(t, StringSetDiff(nil, b))
	assert.ElementsMatch(t, []string{"y"}, StringSetDiff(b, nil))
}

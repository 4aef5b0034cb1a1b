package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "short", Ellipsize("short", 30))
	assert.Equal(t, "abc...", Ellipsize("abcdef", 3))
	assert.Equal(t, "مرحبا...", Ellipsize("مرحبا بك", 5))
	assert.Equal(t, "", Ellipsize("anything", 0))
}

func TestContainsAnyFold(t *testing.T) {
	assert.True(t, ContainsAnyFold("Please CLEAR CHAT now", "clear chat"))
	assert.True(t, ContainsAnyFold("ممكن امسح الشات", "xyz", "امسح الشات"))
	assert.False(t, ContainsAnyFold("hello", "bye", ""))
}

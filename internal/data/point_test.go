package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetNextAndNextRoundTrip(t *testing.T) {
	a := &PointInfo{}
	b := &PointInfo{}

	assert.Nil(t, a.Next())
	a.SetNext(b)
	assert.Same(t, b, a.Next())
}

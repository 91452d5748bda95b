package schema

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewAppendsOriginIdWhenAbsent(t *testing.T) {
	s := New([]Dimension{{Name: "Intensity", Type: Uint16}})
	last := s.Dimensions[len(s.Dimensions)-1]
	assert.Equal(t, "OriginId", last.Name)
	assert.Equal(t, Uint32, last.Type)
}

func TestNewDoesNotDuplicateExplicitOriginId(t *testing.T) {
	explicit := Dimension{Name: "OriginId", Type: Uint32}
	s := New([]Dimension{explicit})
	assert.Len(t, s.Dimensions, 1)
}

func TestRecordSizeSumsDimensionWidths(t *testing.T) {
	s := New([]Dimension{
		{Name: "Intensity", Type: Uint16},
		{Name: "Classification", Type: Uint8},
	})
	// Intensity(2) + Classification(1) + OriginId(4)
	assert.Equal(t, 7, s.RecordSize())
}

func TestFindLocatesDimensionByName(t *testing.T) {
	s := New([]Dimension{{Name: "Red", Type: Uint16}})
	d, ok := s.Find("Red")
	assert.True(t, ok)
	assert.Equal(t, Uint16, d.Type)

	_, ok = s.Find("Nope")
	assert.False(t, ok)
}

func TestHashIsStableAndSensitiveToLayout(t *testing.T) {
	a := New([]Dimension{{Name: "Intensity", Type: Uint16, Scale: decimal.NewFromInt(1)}})
	b := New([]Dimension{{Name: "Intensity", Type: Uint16, Scale: decimal.NewFromInt(1)}})
	assert.Equal(t, a.Hash(), b.Hash())

	c := New([]Dimension{{Name: "Intensity", Type: Uint8, Scale: decimal.NewFromInt(1)}})
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestPutUint32Uint32AtRoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PutUint32(buf, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), Uint32At(buf))
}

package intern

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestGetShares(t *testing.T) {
	p := New(0)
	line := "M,F,M"
	a := p.Get(line[0:1])
	b := p.Get(line[4:5])

	assert.Equal(t, "M", a)
	assert.True(t, unsafe.StringData(a) == unsafe.StringData(b))
	assert.True(t, unsafe.StringData(line) != unsafe.StringData(a))
	assert.Equal(t, 1, p.Size())
	assert.Equal(t, 1, p.Hits())
}

func TestLimit(t *testing.T) {
	p := New(2)
	for _, s := range []string{"a", "b", "c", "c"} {
		assert.Equal(t, s, p.Get(s))
	}
	assert.Equal(t, 2, p.Size())
	assert.Equal(t, 0, p.Hits())
}

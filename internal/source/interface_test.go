package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBounds(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		n           int
		start, end  int
	}{
		{name: "first page", page: 1, limit: 3, n: 10, start: 0, end: 3},
		{name: "middle page", page: 2, limit: 3, n: 10, start: 3, end: 6},
		{name: "short last page", page: 4, limit: 3, n: 10, start: 9, end: 10},
		{name: "past the end", page: 5, limit: 3, n: 10, start: 10, end: 10},
		{name: "empty list", page: 1, limit: 3, n: 0, start: 0, end: 0},
		{name: "invalid page", page: 0, limit: 3, n: 10, start: 0, end: 0},
		{name: "invalid limit", page: 1, limit: 0, n: 10, start: 0, end: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end := Bounds(tc.page, tc.limit, tc.n)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}

func TestStatusError_Error(t *testing.T) {
	assert.Equal(t, "unexpected status: 502 Bad Gateway", (&StatusError{StatusCode: 502, Status: "502 Bad Gateway"}).Error())
	assert.Equal(t, "unexpected status: 404 Not Found", (&StatusError{StatusCode: 404}).Error())
}

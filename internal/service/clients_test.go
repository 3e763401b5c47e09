package service

import (
	"context"
	"slices"
	"testing"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(clients []models.Client) []int64 {
	out := make([]int64, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.ID)
	}
	return out
}

func TestSearchClients(t *testing.T) {
	dir := testDirectory()

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"empty query matches all", "", []int64{7, 8, 9}},
		{"spaces are part of the query", "ana ", []int64{7}},
		{"first name ignoring case", "ANA", []int64{7, 9}},
		{"full name", "luis ramos", []int64{8}},
		{"document", "2012345", []int64{8}},
		{"phone", "955", []int64{9}},
		{"no match", "zzz", []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(SearchClients(dir, tt.query))
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSearchClients_Restartable(t *testing.T) {
	seq := SearchClients(testDirectory(), "an")

	first := slices.Collect(seq)
	second := slices.Collect(seq)

	assert.Equal(t, ids(first), ids(second))
	assert.Len(t, testDirectory(), 3)
}

func TestClientSelector_SelectAndClear(t *testing.T) {
	s := NewClientSelector(&fakeClients{clients: testDirectory()})
	require.NoError(t, s.Load(context.Background(), "tok"))

	_, ok := s.Selected()
	assert.False(t, ok)

	c, err := s.Select(8)
	require.NoError(t, err)
	assert.Equal(t, "Luis Ramos", c.FullName())

	got, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(8), got.ID)

	_, err = s.Select(100)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	got, _ = s.Selected()
	assert.Equal(t, int64(8), got.ID)

	s.Clear()
	_, ok = s.Selected()
	assert.False(t, ok)
}

func TestClientSelector_LoadError(t *testing.T) {
	s := NewClientSelector(&fakeClients{err: apperrors.Server("clients unavailable", nil)})

	err := s.Load(context.Background(), "tok")

	assert.ErrorIs(t, err, apperrors.ErrServer)
	assert.Empty(t, slices.Collect(s.Search("")))
}

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySet_Intersects(t *testing.T) {
	tests := []struct {
		name string
		a, b KeySet
		want bool
	}{
		{"disjoint", NewKeySet("A"), NewKeySet("B"), false},
		{"shared", NewKeySet("A", "B"), NewKeySet("B", "C"), true},
		{"empty left", NewKeySet(), NewKeySet("A"), false},
		{"both empty", NewKeySet(), NewKeySet(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Intersects(tt.b))
			assert.Equal(t, tt.want, tt.b.Intersects(tt.a), "intersection is symmetric")
		})
	}
}

func TestKeySet_SortedAndFirst(t *testing.T) {
	s := NewKeySet("C", "A", "B", "A")
	assert.Equal(t, []string{"A", "B", "C"}, s.Sorted())
	assert.Equal(t, "A", s.First())
	assert.Equal(t, "", NewKeySet().First())
}

func TestKeySet_FirstWithEmptyKey(t *testing.T) {
	s := NewKeySet("b", "")
	// Map iteration order varies; the answer must not.
	for i := 0; i < 100; i++ {
		require.Equal(t, "", s.First())
	}
}

func TestTransaction_Validate(t *testing.T) {
	require.NoError(t, NewTransaction("Tx1", []string{"A"}, []string{"B"}, 0, 0).Validate())
	assert.Error(t, NewTransaction("", nil, nil, 0, 0).Validate())

	err := NewTransaction("Tx1", []string{"", "b"}, []string{"B"}, 0, 0).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty key in reads")

	err = NewTransaction("Tx1", []string{"A"}, []string{""}, 0, 0).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty key in writes")
}

func TestTransaction_String(t *testing.T) {
	tx := NewTransaction("Tx1", []string{"B", "A"}, []string{"C"}, 5, 1)
	assert.Equal(t, "Tx1(reads=[A B],writes=[C])", tx.String())
}

func TestWorkloadHash_OrderSensitive(t *testing.T) {
	a := NewTransaction("Tx1", []string{"A"}, []string{"B"}, 0, 0)
	b := NewTransaction("Tx2", []string{"C"}, []string{"D"}, 0, 0)

	h1, err := WorkloadHash([]Transaction{a, b})
	require.NoError(t, err)
	h2, err := WorkloadHash([]Transaction{a, b})
	require.NoError(t, err)
	h3, err := WorkloadHash([]Transaction{b, a})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestQuintileForDecile(t *testing.T) {
	want := map[int]Quintile{1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 6: 3, 7: 4, 8: 4, 9: 5, 10: 5, 0: 0, 11: 0}
	for decile, q := range want {
		assert.Equal(t, q, QuintileForDecile(decile), "decile %d", decile)
	}
}

func TestIsInvitable(t *testing.T) {
	died := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		rec  ResidentRecord
		want bool
	}{
		{"clean record", ResidentRecord{PersonID: "p1"}, true},
		{"dead", ResidentRecord{PersonID: "p1", DateOfDeath: &died}, false},
		{"removed", ResidentRecord{PersonID: "p1", RemovalDate: &died}, false},
		{"removal reason only", ResidentRecord{PersonID: "p1", RemovalReason: strPtr("EMB")}, false},
		{"superseded", ResidentRecord{PersonID: "p1", SupersededBy: strPtr("p9")}, false},
		{"blank supersession", ResidentRecord{PersonID: "p1", SupersededBy: strPtr(" ")}, true},
		{"invited", ResidentRecord{PersonID: "p1", Invited: true}, false},
		{"identified", ResidentRecord{PersonID: "p1", IdentifiedToBeInvited: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsInvitable(tc.rec))
		})
	}
}

func TestPopulationCountsDistinctFromInvitable(t *testing.T) {
	died := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	records := []ResidentRecord{
		{PersonID: "a"},
		{PersonID: "b", Invited: true},
		{PersonID: "c", IdentifiedToBeInvited: true},
		{PersonID: "d", SupersededBy: strPtr("x")},
		{PersonID: "e", DateOfDeath: &died, Invited: true},
		{PersonID: "f", RemovalDate: &died},
	}
	var counts PopulationCounts
	invitable := 0
	for _, r := range records {
		counts.Add(r)
		if IsInvitable(r) {
			invitable++
		}
	}
	assert.Equal(t, 4, counts.EligibleCount)
	assert.Equal(t, 1, counts.InvitedCount)
	assert.Equal(t, 1, invitable)
}

func TestBatchResultFailedIDs(t *testing.T) {
	b := &BatchResult{Failed: []FailedUpdate{{PersonID: "p3"}, {PersonID: "p7"}}}
	assert.Equal(t, []string{"p3", "p7"}, b.FailedIDs())
}

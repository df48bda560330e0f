//go:build integration

package resident_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"screening/internal/targeting/models"
	"screening/internal/targeting/store/resident"
	"screening/internal/targeting/store/schema"
	"screening/pkg/platform/sentinel"
	"screening/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *resident.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(schema.EnsureSchema(context.Background(), s.postgres.DB))
	s.store = resident.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), schema.Tables...))
}

func ptr[T any](v T) *T { return &v }

func (s *PostgresStoreSuite) TestListByAreaCode() {
	ctx := context.Background()
	died := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Put(ctx,
		models.ResidentRecord{PersonID: "p2", AreaCode: "E01"},
		models.ResidentRecord{PersonID: "p1", AreaCode: "E01", DateOfDeath: &died},
		models.ResidentRecord{PersonID: "p3", AreaCode: "E02"},
	))

	got, err := s.store.ListByAreaCode(ctx, "E01")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("p1", got[0].PersonID)
	s.Require().NotNil(got[0].DateOfDeath)
	s.True(died.Equal(*got[0].DateOfDeath))
	s.Equal("p2", got[1].PersonID)

	empty, err := s.store.ListByAreaCode(ctx, "E99")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *PostgresStoreSuite) TestMarkIdentifiedKeepsFirstBatch() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, models.ResidentRecord{PersonID: "p1", AreaCode: "E01"}))

	s.Require().NoError(s.store.MarkIdentified(ctx, "p1", "E01", "IB-first"))
	s.Require().NoError(s.store.MarkIdentified(ctx, "p1", "E01", "IB-second"))

	got, err := s.store.Get(ctx, "p1")
	s.Require().NoError(err)
	s.True(got.IdentifiedToBeInvited)
	s.Require().NotNil(got.BatchID)
	s.Equal("IB-first", *got.BatchID)
}

func (s *PostgresStoreSuite) TestMarkIdentifiedUnknownResident() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, models.ResidentRecord{PersonID: "p1", AreaCode: "E01"}))

	s.ErrorIs(s.store.MarkIdentified(ctx, "p1", "E02", "IB-x"), sentinel.ErrNotFound)
	s.ErrorIs(s.store.MarkIdentified(ctx, "nobody", "E01", "IB-x"), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentReservationsSettleOnOneBatch() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, models.ResidentRecord{PersonID: "p1", AreaCode: "E01"}))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.MarkIdentified(ctx, "p1", "E01", fmt.Sprintf("IB-%d", i)))
		}()
	}
	wg.Wait()

	got, err := s.store.Get(ctx, "p1")
	s.Require().NoError(err)
	s.Require().NotNil(got.BatchID)
	s.Regexp(`^IB-\d$`, *got.BatchID)
}

func (s *PostgresStoreSuite) TestCountByAreaCodes() {
	ctx := context.Background()
	removed := time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Put(ctx,
		models.ResidentRecord{PersonID: "a1", AreaCode: "E01"},
		models.ResidentRecord{PersonID: "a2", AreaCode: "E01", Invited: true},
		models.ResidentRecord{PersonID: "a3", AreaCode: "E01", RemovalDate: &removed},
		models.ResidentRecord{PersonID: "a4", AreaCode: "E01", RemovalReason: ptr("EMB")},
		models.ResidentRecord{PersonID: "a5", AreaCode: "E01", RemovalReason: ptr("  ")},
		models.ResidentRecord{PersonID: "b1", AreaCode: "E02", SupersededBy: ptr("b9")},
	))

	counts, err := s.store.CountByAreaCodes(ctx, []string{"E01", "E02", "E03"})
	s.Require().NoError(err)
	s.Equal(models.PopulationCounts{EligibleCount: 3, InvitedCount: 1}, counts["E01"])
	s.Equal(models.PopulationCounts{EligibleCount: 1}, counts["E02"])
	_, ok := counts["E03"]
	s.False(ok)
}

func (s *PostgresStoreSuite) TestPutRejectsAreaMove() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, models.ResidentRecord{PersonID: "p1", AreaCode: "E01"}))
	s.ErrorIs(s.store.Put(ctx, models.ResidentRecord{PersonID: "p1", AreaCode: "E02"}), sentinel.ErrConflict)
}

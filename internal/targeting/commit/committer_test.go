package commit

//go:generate mockgen -source=committer.go -destination=mocks/mocks.go -package=mocks ResidentUpdater,ClinicUpdater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"screening/internal/targeting"
	"screening/internal/targeting/commit/mocks"
	"screening/internal/targeting/models"
	"screening/internal/targeting/store/resident"
	"screening/pkg/requestcontext"
)

type CommitterSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	residents *mocks.MockResidentUpdater
	clinics   *mocks.MockClinicUpdater
	logger    *slog.Logger
	now       time.Time
	ctx       context.Context
}

func TestCommitterSuite(t *testing.T) {
	suite.Run(t, new(CommitterSuite))
}

func (s *CommitterSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.residents = mocks.NewMockResidentUpdater(s.ctrl)
	s.clinics = mocks.NewMockClinicUpdater(s.ctrl)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2024, 9, 2, 8, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *CommitterSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *CommitterSuite) newCommitter(residents ResidentUpdater, opts ...Option) *Committer {
	opts = append([]Option{WithLogger(s.logger), WithBatchIDGenerator(func() string { return "IB-test" })}, opts...)
	c, err := New(residents, s.clinics, opts...)
	s.Require().NoError(err)
	return c
}

func selection(n int) []models.ResidentRecord {
	out := make([]models.ResidentRecord, n)
	for i := range out {
		out[i] = models.ResidentRecord{PersonID: fmt.Sprintf("p%d", i+1), AreaCode: "E01"}
	}
	return out
}

var update = models.ClinicUpdate{
	ClinicID:                 "C1",
	ClinicName:               "Riverside",
	TargetFillPercentage:     80,
	RadiusMiles:              3,
	AppointmentsRemaining:    40,
	TargetAppointmentsToFill: 25,
}

func (s *CommitterSuite) TestNew() {
	s.Run("nil resident updater", func() {
		_, err := New(nil, s.clinics)
		s.ErrorContains(err, "resident updater is required")
	})
	s.Run("nil clinic updater", func() {
		_, err := New(s.residents, nil)
		s.ErrorContains(err, "clinic updater is required")
	})
}

func (s *CommitterSuite) TestAllSucceed() {
	s.residents.EXPECT().MarkIdentified(gomock.Any(), gomock.Any(), "E01", "IB-test").Return(nil).Times(3)
	s.clinics.EXPECT().UpdateAfterInvite(gomock.Any(), "C1", "Riverside", models.ClinicInviteFields{
		BatchID:              "IB-test",
		TargetFillPercentage: 80,
		LastSelectedRange:    3,
		InvitesSent:          3,
		PrevInviteDate:       s.now,
		Availability:         15,
	}).Return(nil)

	result, err := s.newCommitter(s.residents).Commit(s.ctx, selection(3), update)
	s.Require().NoError(err)
	s.Equal("IB-test", result.BatchID)
	s.Equal([]string{"p1", "p2", "p3"}, result.Succeeded)
	s.Empty(result.Failed)
}

func (s *CommitterSuite) TestPartialFailureIsolation() {
	s.residents.EXPECT().MarkIdentified(gomock.Any(), gomock.Any(), "E01", "IB-test").
		DoAndReturn(func(_ context.Context, personID, _, _ string) error {
			if personID == "p3" || personID == "p7" {
				return errors.New("conditional check failed")
			}
			return nil
		}).Times(10)
	s.clinics.EXPECT().UpdateAfterInvite(gomock.Any(), "C1", "Riverside", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, f models.ClinicInviteFields) error {
			s.Equal(8, f.InvitesSent)
			return nil
		})

	result, err := s.newCommitter(s.residents, WithConcurrency(4)).Commit(s.ctx, selection(10), update)
	s.Require().NoError(err, "resident failures do not fail the batch")
	s.Len(result.Succeeded, 8)
	s.Equal([]string{"p3", "p7"}, result.FailedIDs())
	s.Contains(result.Failed[0].Reason, "conditional check failed")
}

func (s *CommitterSuite) TestClinicFailureIsPartialCommit() {
	clinicErr := errors.New("clinic table throttled")
	s.residents.EXPECT().MarkIdentified(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, personID, _, _ string) error {
			if personID == "p2" {
				return errors.New("timeout")
			}
			return nil
		}).Times(3)
	s.clinics.EXPECT().UpdateAfterInvite(gomock.Any(), "C1", "Riverside", gomock.Any()).Return(clinicErr)

	result, err := s.newCommitter(s.residents).Commit(s.ctx, selection(3), update)
	s.Require().NotNil(result, "result is returned with the error")
	s.Equal([]string{"p1", "p3"}, result.Succeeded)

	var pce *targeting.PartialCommitError
	s.Require().ErrorAs(err, &pce)
	s.ErrorIs(err, clinicErr)
	s.Equal("IB-test", pce.BatchID)
	s.Equal([]string{"p1", "p3"}, pce.Succeeded)
	s.Equal([]string{"p2"}, pce.Failed)
}

func (s *CommitterSuite) TestSlowResidentTimesOutAlone() {
	s.residents.EXPECT().MarkIdentified(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, personID, _, _ string) error {
			if personID == "p1" {
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		}).Times(2)
	s.clinics.EXPECT().UpdateAfterInvite(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.newCommitter(s.residents, WithCallTimeout(20*time.Millisecond)).Commit(s.ctx, selection(2), update)
	s.Require().NoError(err)
	s.Equal([]string{"p2"}, result.Succeeded)
	s.Require().Len(result.Failed, 1)
	s.True(strings.Contains(result.Failed[0].Reason, "deadline exceeded"))
}

func (s *CommitterSuite) TestCommitTwiceIsIdempotent() {
	store := resident.NewInMemoryStore()
	s.Require().NoError(store.Put(s.ctx, models.ResidentRecord{PersonID: "p1", AreaCode: "E01"}))
	s.clinics.EXPECT().UpdateAfterInvite(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	ids := []string{"IB-one", "IB-two"}
	next := 0
	c, err := New(store, s.clinics, WithLogger(s.logger), WithBatchIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))
	s.Require().NoError(err)

	for range 2 {
		result, err := c.Commit(s.ctx, selection(1), update)
		s.Require().NoError(err)
		s.Equal([]string{"p1"}, result.Succeeded)
		s.Empty(result.Failed)
	}

	r, err := store.Get(s.ctx, "p1")
	s.Require().NoError(err)
	s.True(r.IdentifiedToBeInvited)
	s.Equal("IB-one", *r.BatchID)
}

func (s *CommitterSuite) TestBatchIDFormat() {
	id := NewBatchID()
	s.True(strings.HasPrefix(id, BatchIDPrefix))
	s.Len(id, len(BatchIDPrefix)+36)
}

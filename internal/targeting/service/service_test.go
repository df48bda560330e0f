package service_test

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ParametersStore,ClinicReader,BatchPublisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"screening/internal/targeting"
	"screening/internal/targeting/catchment"
	catchmentmocks "screening/internal/targeting/catchment/mocks"
	"screening/internal/targeting/commit"
	commitmocks "screening/internal/targeting/commit/mocks"
	"screening/internal/targeting/eligibility"
	"screening/internal/targeting/models"
	"screening/internal/targeting/service"
	"screening/internal/targeting/service/mocks"
	"screening/internal/targeting/store/areaunit"
	"screening/internal/targeting/store/clinic"
	"screening/internal/targeting/store/parameters"
	"screening/internal/targeting/store/resident"
	dErrors "screening/pkg/domain-errors"
	"screening/pkg/requestcontext"
)

var clinicGrid = models.GridReference{Easting: 530047, Northing: 179951}

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	geocoder  *catchmentmocks.MockGeocoder
	publisher *mocks.MockBatchPublisher
	areas     *areaunit.InMemoryStore
	residents *resident.InMemoryStore
	clinics   *clinic.InMemoryStore
	params    *parameters.InMemoryStore
	logger    *slog.Logger
	now       time.Time
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.geocoder = catchmentmocks.NewMockGeocoder(s.ctrl)
	s.publisher = mocks.NewMockBatchPublisher(s.ctrl)
	s.areas = areaunit.NewInMemoryStore(2)
	s.residents = resident.NewInMemoryStore()
	s.clinics = clinic.NewInMemoryStore()
	s.params = parameters.NewInMemoryStore(parameters.Defaults)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2024, 9, 2, 8, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	ctx := context.Background()
	s.Require().NoError(s.areas.Put(ctx,
		// about 0.02 miles from the clinic
		models.AreaUnit{Code: "E01000001", Name: "Westminster 018A", Easting: 530077, Northing: 179951, Decile: 9, Moderator: 1},
		// about 6 miles away
		models.AreaUnit{Code: "E01000002", Name: "Camden 001A", Easting: 540000, Northing: 179951, Decile: 1, Moderator: 1},
	))
	s.Require().NoError(s.clinics.Put(ctx, models.Clinic{ID: "C1", Name: "Riverside", Postcode: "SW1A 1AA"}))
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

type deps struct {
	reader       eligibility.PopulationReader
	clinics      commit.ClinicUpdater
	clinicReader service.ClinicReader
	params       service.ParametersStore
}

func (s *ServiceSuite) newService(d deps, opts ...service.Option) *service.Service {
	if d.reader == nil {
		d.reader = s.residents
	}
	if d.clinics == nil {
		d.clinics = s.clinics
	}
	if d.params == nil {
		d.params = s.params
	}
	if d.clinicReader == nil {
		d.clinicReader = s.clinics
	}
	resolver, err := catchment.New(s.geocoder, s.areas, catchment.WithLogger(s.logger))
	s.Require().NoError(err)
	filter, err := eligibility.New(d.reader, eligibility.WithLogger(s.logger))
	s.Require().NoError(err)
	committer, err := commit.New(s.residents, d.clinics, commit.WithLogger(s.logger))
	s.Require().NoError(err)

	opts = append([]service.Option{
		service.WithLogger(s.logger),
		service.WithRandomSelection(false),
	}, opts...)
	svc, err := service.New(resolver, filter, committer, d.params, d.clinicReader, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) seedResidents(area string, n int, mutate func(i int, r *models.ResidentRecord)) {
	records := make([]models.ResidentRecord, n)
	for i := range records {
		records[i] = models.ResidentRecord{PersonID: fmt.Sprintf("%s-P%03d", area, i), AreaCode: area}
		if mutate != nil {
			mutate(i, &records[i])
		}
	}
	s.Require().NoError(s.residents.Put(context.Background(), records...))
}

func ptr[T any](v T) *T { return &v }

func runRequest() models.RunRequest {
	return models.RunRequest{
		ClinicID:                 "C1",
		Postcode:                 "sw1a 1aa",
		RadiusMiles:              1,
		TargetCount:              10,
		TargetFillPercentage:     ptr(80),
		AppointmentsRemaining:    30,
		TargetAppointmentsToFill: 12,
	}
}

func (s *ServiceSuite) TestNewRequiresDependencies() {
	_, err := service.New(nil, nil, nil, nil, nil)
	s.Error(err)
}

func (s *ServiceSuite) TestRunEndToEnd() {
	s.seedResidents("E01000001", 50, nil)
	s.seedResidents("E01000002", 50, nil)
	s.geocoder.EXPECT().Resolve(gomock.Any(), "SW1A 1AA").Return(clinicGrid, nil)

	var published models.BatchCommittedEvent
	s.publisher.EXPECT().PublishBatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e models.BatchCommittedEvent) error {
			published = e
			return nil
		})

	result, err := s.newService(deps{}, service.WithPublisher(s.publisher)).Run(s.ctx, runRequest())
	s.Require().NoError(err)

	s.Len(result.Succeeded, 10)
	s.Empty(result.Failed)
	s.Equal(1, result.CatchmentUnits)
	s.True(result.ClinicUpdated)
	s.Equal(s.now, result.CompletedAt)
	s.Regexp(`^IB-`, result.BatchID)
	s.Equal(10, result.Quintiles[4].Allocated)
	s.InDelta(5.0, result.ExpectedAcceptances, 1e-9)
	s.Contains(result.Warnings, "quintile shortfall of 8 redistributed; target of 10 met")

	for _, id := range result.Succeeded {
		r, err := s.residents.Get(context.Background(), id)
		s.Require().NoError(err)
		s.Equal("E01000001", r.AreaCode)
		s.True(r.IdentifiedToBeInvited)
		s.Equal(result.BatchID, *r.BatchID)
	}

	c, err := s.clinics.Get(context.Background(), "C1", "")
	s.Require().NoError(err)
	s.Equal(10, c.InvitesSent)
	s.Equal(18, c.Availability)
	s.Equal(1.0, c.LastSelectedRange)
	s.Equal(80, c.TargetFillPercentage)
	s.Equal(s.now, *c.PrevInviteDate)

	s.Equal(result.BatchID, published.BatchID)
	s.Equal("Riverside", published.ClinicName)
	s.ElementsMatch(result.Succeeded, published.PersonIDs)
}

func (s *ServiceSuite) TestRunUsesClinicPostcodeWhenOmitted() {
	s.seedResidents("E01000001", 5, nil)
	s.geocoder.EXPECT().Resolve(gomock.Any(), "SW1A 1AA").Return(clinicGrid, nil)

	req := runRequest()
	req.Postcode = ""
	req.TargetCount = 5
	result, err := s.newService(deps{}).Run(s.ctx, req)
	s.Require().NoError(err)
	s.Len(result.Succeeded, 5)
}

func (s *ServiceSuite) TestRunShufflesEachUnitWhenRandomised() {
	s.seedResidents("E01000001", 20, nil)
	s.geocoder.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(clinicGrid, nil)

	calls := 0
	reverse := func(rs []models.ResidentRecord) {
		calls++
		for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
			rs[i], rs[j] = rs[j], rs[i]
		}
	}
	req := runRequest()
	req.TargetCount = 2
	result, err := s.newService(deps{}, service.WithRandomSelection(true), service.WithShuffler(reverse)).Run(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(1, calls)
	s.ElementsMatch([]string{"E01000001-P019", "E01000001-P018"}, result.Succeeded)
}

func (s *ServiceSuite) TestRunValidation() {
	svc := s.newService(deps{})
	cases := map[string]func(r *models.RunRequest){
		"missing clinic":        func(r *models.RunRequest) { r.ClinicID = "" },
		"zero target":           func(r *models.RunRequest) { r.TargetCount = 0 },
		"zero radius":           func(r *models.RunRequest) { r.RadiusMiles = 0 },
		"radius too large":      func(r *models.RunRequest) { r.RadiusMiles = 500 },
		"fill percentage > 100": func(r *models.RunRequest) { r.TargetFillPercentage = ptr(101) },
		"target above maximum":  func(r *models.RunRequest) { r.TargetCount = models.MaxTargetCount + 1 },
		"negative appointments": func(r *models.RunRequest) { r.AppointmentsRemaining = -1 },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			req := runRequest()
			mutate(&req)
			_, err := svc.Run(s.ctx, req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func (s *ServiceSuite) TestRunFillPercentageDefaultsToStoredTarget() {
	s.seedResidents("E01000001", 5, nil)
	s.geocoder.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(clinicGrid, nil)
	svc := s.newService(deps{})
	_, err := svc.UpdateTargetPercentage(s.ctx, 70)
	s.Require().NoError(err)

	req := runRequest()
	req.TargetCount = 5
	req.TargetFillPercentage = nil
	_, err = svc.Run(s.ctx, req)
	s.Require().NoError(err)

	c, err := s.clinics.Get(context.Background(), "C1", "")
	s.Require().NoError(err)
	s.Equal(70, c.TargetFillPercentage)
}

func (s *ServiceSuite) TestRunBoundsParameterAndClinicLookups() {
	blocked := func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		s.True(ok)
		<-ctx.Done()
		return ctx.Err()
	}

	s.Run("parameters", func() {
		params := mocks.NewMockParametersStore(s.ctrl)
		params.EXPECT().Get(gomock.Any()).DoAndReturn(func(ctx context.Context) (models.InvitationParameters, error) {
			return models.InvitationParameters{}, blocked(ctx)
		})
		svc := s.newService(deps{params: params}, service.WithCallTimeout(10*time.Millisecond))

		_, err := svc.Run(s.ctx, runRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable), "got %v", err)
		s.ErrorIs(err, context.DeadlineExceeded)
	})

	s.Run("clinic", func() {
		clinics := mocks.NewMockClinicReader(s.ctrl)
		clinics.EXPECT().Get(gomock.Any(), "C1", "").DoAndReturn(func(ctx context.Context, _, _ string) (*models.Clinic, error) {
			return nil, blocked(ctx)
		})
		svc := s.newService(deps{clinicReader: clinics}, service.WithCallTimeout(10*time.Millisecond))

		_, err := svc.Run(s.ctx, runRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable), "got %v", err)
		s.ErrorIs(err, context.DeadlineExceeded)
	})
}

func (s *ServiceSuite) TestRunRejectsInvalidStoredWeightsBeforeReadingPopulation() {
	params := mocks.NewMockParametersStore(s.ctrl)
	params.EXPECT().Get(gomock.Any()).Return(models.InvitationParameters{
		QuintileWeights: [models.NumQuintiles]int{20, 20, 20, 20, 10},
		ForecastUptake:  50,
	}, nil)

	// no geocoder expectation: the run must stop before resolving
	_, err := s.newService(deps{params: params}).Run(s.ctx, runRequest())
	var iwe *targeting.InvalidWeightsError
	s.Require().ErrorAs(err, &iwe)
	s.Contains(iwe.Reason, "sum to 90")
}

func (s *ServiceSuite) TestRunUnknownClinic() {
	req := runRequest()
	req.ClinicID = "C9"
	_, err := s.newService(deps{}).Run(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRunGeocodeFailureIsFatal() {
	s.geocoder.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		Return(models.GridReference{}, fmt.Errorf("lookup: %w", targeting.ErrUnknownPostcode))

	result, err := s.newService(deps{}).Run(s.ctx, runRequest())
	s.Nil(result)
	var ge *targeting.GeocodeError
	s.Require().ErrorAs(err, &ge)
	s.True(ge.UnknownPostcode())
}

func (s *ServiceSuite) TestRunClinicWriteFailureReturnsPartialResult() {
	s.seedResidents("E01000001", 50, nil)
	s.geocoder.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(clinicGrid, nil)
	clinics := commitmocks.NewMockClinicUpdater(s.ctrl)
	clinics.EXPECT().UpdateAfterInvite(gomock.Any(), "C1", "Riverside", gomock.Any()).Return(errors.New("db down"))

	result, err := s.newService(deps{clinics: clinics}).Run(s.ctx, runRequest())
	var pce *targeting.PartialCommitError
	s.Require().ErrorAs(err, &pce)
	s.Require().NotNil(result)
	s.Len(result.Succeeded, 10)
	s.False(result.ClinicUpdated)
	s.Contains(result.Warnings, "clinic update failed: no resident failures")
}

func (s *ServiceSuite) TestRunPublishFailureIsOnlyAWarning() {
	s.seedResidents("E01000001", 50, nil)
	s.geocoder.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(clinicGrid, nil)
	s.publisher.EXPECT().PublishBatch(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	result, err := s.newService(deps{}, service.WithPublisher(s.publisher)).Run(s.ctx, runRequest())
	s.Require().NoError(err)
	s.Len(result.Succeeded, 10)
	s.Contains(result.Warnings, "batch event not published: broker down")
}

func (s *ServiceSuite) TestRunWithNoInvitableResidentsCommitsNothing() {
	s.seedResidents("E01000001", 5, func(_ int, r *models.ResidentRecord) { r.Invited = true })
	s.geocoder.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(clinicGrid, nil)

	result, err := s.newService(deps{}, service.WithPublisher(s.publisher)).Run(s.ctx, runRequest())
	s.Require().NoError(err)
	s.Empty(result.BatchID)
	s.Empty(result.Succeeded)
	s.False(result.ClinicUpdated)
	s.Contains(result.Warnings, "no invitable residents selected; nothing committed")

	c, err := s.clinics.Get(context.Background(), "C1", "")
	s.Require().NoError(err)
	s.Zero(c.InvitesSent)
}

func (s *ServiceSuite) TestRunExcludesIneligibleResidents() {
	died := s.now.AddDate(-1, 0, 0)
	s.seedResidents("E01000001", 12, func(i int, r *models.ResidentRecord) {
		switch i {
		case 0:
			r.DateOfDeath = &died
		case 1:
			r.Invited = true
		case 2:
			r.IdentifiedToBeInvited = true
		}
	})
	s.geocoder.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(clinicGrid, nil)

	result, err := s.newService(deps{}).Run(s.ctx, runRequest())
	s.Require().NoError(err)
	s.Len(result.Succeeded, 9)
	s.NotContains(result.Succeeded, "E01000001-P000")
	s.NotContains(result.Succeeded, "E01000001-P001")
	s.NotContains(result.Succeeded, "E01000001-P002")
	s.Contains(result.Warnings, "invitable population exhausted: allocated 9 of 10 requested")
}

// barrierReader holds every caller until n reads are in flight, so
// overlapping runs observe the same population.
type barrierReader struct {
	inner eligibility.PopulationReader
	wg    *sync.WaitGroup
}

func (b barrierReader) ListByAreaCode(ctx context.Context, areaCode string) ([]models.ResidentRecord, error) {
	b.wg.Done()
	b.wg.Wait()
	return b.inner.ListByAreaCode(ctx, areaCode)
}

func (s *ServiceSuite) TestOverlappingRunsCanSelectTheSameResidents() {
	s.seedResidents("E01000001", 50, nil)
	s.geocoder.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(clinicGrid, nil).Times(2)

	var wg sync.WaitGroup
	wg.Add(2)
	svc := s.newService(deps{reader: barrierReader{inner: s.residents, wg: &wg}})

	results := make([]*models.RunResult, 2)
	var done sync.WaitGroup
	for i := range results {
		done.Add(1)
		go func() {
			defer done.Done()
			r, err := svc.Run(s.ctx, runRequest())
			s.NoError(err)
			results[i] = r
		}()
	}
	done.Wait()
	s.Require().NotNil(results[0])
	s.Require().NotNil(results[1])

	// Both runs reserved the same ten residents; the conditional update
	// keeps each resident on whichever batch reached it first.
	s.ElementsMatch(results[0].Succeeded, results[1].Succeeded)
	batches := []string{results[0].BatchID, results[1].BatchID}
	for _, id := range results[0].Succeeded {
		r, err := s.residents.Get(context.Background(), id)
		s.Require().NoError(err)
		s.Contains(batches, *r.BatchID)
	}

	c, err := s.clinics.Get(context.Background(), "C1", "")
	s.Require().NoError(err)
	s.Equal(20, c.InvitesSent, "each batch is counted against the clinic")
}

func (s *ServiceSuite) TestCatchmentReport() {
	s.Require().NoError(s.areas.Put(context.Background(),
		models.AreaUnit{Code: "E01000003", Name: "Lambeth 002B", Easting: 531656, Northing: 179951, Decile: 4, Moderator: 1.1},
	))
	died := s.now
	s.seedResidents("E01000001", 4, func(i int, r *models.ResidentRecord) { r.Invited = i == 0 })
	s.seedResidents("E01000003", 2, func(i int, r *models.ResidentRecord) {
		if i == 0 {
			r.DateOfDeath = &died
		}
	})
	s.geocoder.EXPECT().Resolve(gomock.Any(), "SW1A 1AA").Return(clinicGrid, nil)

	report, err := s.newService(deps{}).Catchment(s.ctx, " sw1a 1aa ", 2)
	s.Require().NoError(err)

	s.Equal("SW1A 1AA", report.Postcode)
	s.Require().Len(report.Units, 2)
	s.Equal("E01000001", report.Units[0].Code)
	s.Equal(0.02, report.Units[0].DistanceMiles)
	s.Equal(models.PopulationCounts{EligibleCount: 4, InvitedCount: 1}, report.Units[0].PopulationCounts)
	s.Equal("E01000003", report.Units[1].Code)
	s.Equal(1.0, report.Units[1].DistanceMiles)
	s.Equal(1, report.Units[1].EligibleCount)
	s.Equal(5, report.TotalEligible)
	s.Equal(1, report.TotalInvited)
}

func (s *ServiceSuite) TestClinic() {
	svc := s.newService(deps{})

	c, err := svc.Clinic(s.ctx, "C1", "riverside")
	s.Require().NoError(err)
	s.Equal("Riverside", c.Name)

	_, err = svc.Clinic(s.ctx, "C1", "Hillside")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.Clinic(s.ctx, "", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestParameterUpdates() {
	svc := s.newService(deps{})

	s.Run("quintiles must sum to 100", func() {
		_, err := svc.UpdateQuintiles(s.ctx, [models.NumQuintiles]int{10, 10, 10, 10, 10})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("quintiles are stored", func() {
		p, err := svc.UpdateQuintiles(s.ctx, [models.NumQuintiles]int{30, 25, 20, 15, 10})
		s.Require().NoError(err)
		s.Equal([models.NumQuintiles]int{30, 25, 20, 15, 10}, p.QuintileWeights)
	})

	s.Run("forecast uptake bounds", func() {
		_, err := svc.UpdateForecastUptake(s.ctx, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = svc.UpdateForecastUptake(s.ctx, 100.5)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		p, err := svc.UpdateForecastUptake(s.ctx, 65)
		s.Require().NoError(err)
		s.Equal(65.0, p.ForecastUptake)
	})

	s.Run("target percentage bounds", func() {
		_, err := svc.UpdateTargetPercentage(s.ctx, 101)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		p, err := svc.UpdateTargetPercentage(s.ctx, 60)
		s.Require().NoError(err)
		s.Equal(60, p.TargetPercentage)
	})
}

func (s *ServiceSuite) TestParameterStoreFailure() {
	params := mocks.NewMockParametersStore(s.ctrl)
	params.EXPECT().UpdateTargetPercentage(gomock.Any(), 40).Return(errors.New("db down"))

	_, err := s.newService(deps{params: params}).UpdateTargetPercentage(s.ctx, 40)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

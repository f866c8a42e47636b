package service_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"bloodlink/internal/audit"
	"bloodlink/internal/blood"
	"bloodlink/internal/donor"
	"bloodlink/internal/hospital"
	"bloodlink/internal/notify"
	"bloodlink/internal/request"
	"bloodlink/internal/request/service"
	"bloodlink/internal/user"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/requestcontext"
)

// fakeNotifier records sends and optionally fails them.
type fakeNotifier struct {
	sent []notify.AppointmentNotice
	err  error
}

func (f *fakeNotifier) AppointmentScheduled(_ context.Context, n notify.AppointmentNotice) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

// syncAuditSink appends synchronously so tests can assert on the trail
// without a worker goroutine.
type syncAuditSink struct {
	store *audit.InMemoryStore
}

func (s *syncAuditSink) Emit(ctx context.Context, event audit.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	_ = s.store.Append(ctx, event)
}

// fakeCache is a map-backed MatchingCache.
type fakeCache struct {
	entries map[string][]*request.Request
	gets    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]*request.Request)}
}

func (c *fakeCache) Get(_ context.Context, group blood.Group) ([]*request.Request, bool, error) {
	c.gets++
	cached, ok := c.entries[group.InventoryKey()]
	return cached, ok, nil
}

func (c *fakeCache) Set(_ context.Context, group blood.Group, requests []*request.Request) error {
	c.sets++
	c.entries[group.InventoryKey()] = requests
	return nil
}

type ServiceSuite struct {
	suite.Suite

	ctx       context.Context
	now       time.Time
	requests  *request.InMemoryStore
	donors    *donor.InMemoryStore
	hospitals *hospital.InMemoryStore
	users     *user.InMemoryStore
	notifier  *fakeNotifier
	auditLog  *audit.InMemoryStore
	cache     *fakeCache
	svc       *service.Service

	requester id.Actor
	donorUser id.Actor
	hospUser  id.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.requests = request.NewInMemoryStore()
	s.donors = donor.NewInMemoryStore()
	s.hospitals = hospital.NewInMemoryStore()
	s.users = user.NewInMemoryStore()
	s.notifier = &fakeNotifier{}
	s.auditLog = audit.NewInMemoryStore()
	s.cache = newFakeCache()

	s.requester = id.Actor{ID: uuid.New(), Role: id.RoleUser}
	s.donorUser = id.Actor{ID: uuid.New(), Role: id.RoleDonor}
	s.hospUser = id.Actor{ID: uuid.New(), Role: id.RoleHospital}

	s.Require().NoError(s.users.Create(s.ctx, &user.User{
		ID:       s.requester.ID,
		FullName: "Priya Raman",
		Email:    "priya@example.com",
	}))
	s.Require().NoError(s.donors.Create(s.ctx, &donor.Donor{
		ID:         s.donorUser.ID,
		FullName:   "Arun Kumar",
		Mobile:     "9876543210",
		Gender:     "Male",
		BloodGroup: blood.GroupONeg,
	}))
	inv := hospital.NewInventory()
	inv["A_pos"] = 5
	s.Require().NoError(s.hospitals.Create(s.ctx, &hospital.Hospital{
		ID:           s.hospUser.ID,
		HospitalName: "City General",
		Inventory:    inv,
	}))

	s.svc = service.New(
		s.requests, s.donors, s.hospitals, s.users, s.notifier,
		slog.New(slog.DiscardHandler), nil,
		service.WithAudit(&syncAuditSink{store: s.auditLog}, s.auditLog),
	)
}

func (s *ServiceSuite) createPending(group blood.Group, urgency string) *request.Request {
	req, err := s.svc.Create(s.ctx, s.requester, service.CreateInput{
		PatientName:     "Patient",
		Age:             42,
		BloodGroup:      string(group),
		Reason:          "surgery",
		HospitalName:    "Apollo",
		HospitalAddress: "12 Main St",
		Urgency:         urgency,
	})
	s.Require().NoError(err)
	return req
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Require().True(dErrors.Is(err, code), "want code %s, got %v", code, err)
}

func (s *ServiceSuite) TestCreateDefaults() {
	req := s.createPending(blood.GroupONeg, "")

	s.Equal(request.StatusPending, req.Status)
	s.Equal(1, req.Units, "units defaults to 1")
	s.Equal(blood.UrgencyModerate, req.Urgency, "urgency defaults to moderate")
	s.False(req.FulfilledBy.Valid)
	s.Equal(s.now, req.CreatedAt)

	events, err := s.auditLog.ListByRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionCreated, events[0].Action)
}

func (s *ServiceSuite) TestCreateValidation() {
	s.Run("rejects non-user roles", func() {
		_, err := s.svc.Create(s.ctx, s.donorUser, service.CreateInput{})
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("rejects unknown blood group", func() {
		_, err := s.svc.Create(s.ctx, s.requester, service.CreateInput{
			PatientName:     "Patient",
			BloodGroup:      "C+",
			HospitalName:    "Apollo",
			HospitalAddress: "12 Main St",
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("rejects missing patient name", func() {
		_, err := s.svc.Create(s.ctx, s.requester, service.CreateInput{
			BloodGroup:      "A+",
			HospitalName:    "Apollo",
			HospitalAddress: "12 Main St",
		})
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *ServiceSuite) TestDirectedCreateChecksStock() {
	s.Run("rejects when units exceed stock", func() {
		_, err := s.svc.Create(s.ctx, s.requester, service.CreateInput{
			PatientName:     "Patient",
			BloodGroup:      "A+",
			Units:           6,
			HospitalName:    "City General",
			HospitalAddress: "1 Hospital Rd",
			TargetHospital:  s.hospUser.ID,
		})
		s.requireCode(err, dErrors.CodeValidation)
		s.Contains(err.Error(), "insufficient stock")
	})

	s.Run("accepts when stock covers the request", func() {
		req, err := s.svc.Create(s.ctx, s.requester, service.CreateInput{
			PatientName:     "Patient",
			BloodGroup:      "A+",
			Units:           3,
			HospitalName:    "City General",
			HospitalAddress: "1 Hospital Rd",
			TargetHospital:  s.hospUser.ID,
		})
		s.Require().NoError(err)
		s.True(req.TargetHospital.Valid)
		s.Equal(s.hospUser.ID, req.TargetHospital.UUID)
	})

	s.Run("rejects unknown hospital", func() {
		_, err := s.svc.Create(s.ctx, s.requester, service.CreateInput{
			PatientName:     "Patient",
			BloodGroup:      "A+",
			HospitalName:    "Nowhere",
			HospitalAddress: "0 Nowhere Ln",
			TargetHospital:  uuid.New(),
		})
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *ServiceSuite) TestMatchingOrdersAndFilters() {
	later := s.now.Add(time.Hour)
	laterCtx := requestcontext.WithTime(context.Background(), later)

	low := s.createPending(blood.GroupONeg, "low")
	_ = low
	critOld := s.createPending(blood.GroupONeg, "critical")
	req, err := s.svc.Create(laterCtx, s.requester, service.CreateInput{
		PatientName:     "Patient",
		BloodGroup:      "O-",
		Urgency:         "critical",
		HospitalName:    "Apollo",
		HospitalAddress: "12 Main St",
	})
	s.Require().NoError(err)
	critNew := req
	s.createPending(blood.GroupAPos, "critical") // different group, excluded

	svcNoCache := s.svc
	feed, err := svcNoCache.Matching(s.ctx, s.donorUser)
	s.Require().NoError(err)

	s.Equal(blood.GroupONeg, feed.BloodGroup)
	s.Require().Equal(3, feed.Count)
	s.Equal(critNew.ID, feed.Requests[0].ID, "critical and newest first")
	s.Equal(critOld.ID, feed.Requests[1].ID)
	s.Equal(blood.UrgencyLow, feed.Requests[2].Urgency)
}

func (s *ServiceSuite) TestMatchingExcludesNonPending() {
	req := s.createPending(blood.GroupONeg, "critical")
	_, err := s.svc.Schedule(s.ctx, s.donorUser, req.ID, service.ScheduleInput{
		Date: "2025-06-10", Time: "10:00",
	})
	s.Require().NoError(err)

	feed, err := s.svc.Matching(s.ctx, s.donorUser)
	s.Require().NoError(err)
	s.Equal(0, feed.Count)
}

func (s *ServiceSuite) TestMatchingUsesCache() {
	cached := service.New(
		s.requests, s.donors, s.hospitals, s.users, s.notifier,
		slog.New(slog.DiscardHandler), nil,
		service.WithMatchingCache(s.cache),
	)
	s.createPending(blood.GroupONeg, "critical")

	first, err := cached.Matching(s.ctx, s.donorUser)
	s.Require().NoError(err)
	s.Equal(1, first.Count)
	s.Equal(1, s.cache.sets, "miss populates the cache")

	s.createPending(blood.GroupONeg, "critical")
	second, err := cached.Matching(s.ctx, s.donorUser)
	s.Require().NoError(err)
	s.Equal(1, second.Count, "hit serves the cached feed")
	s.Equal(1, s.cache.sets)
}

func (s *ServiceSuite) TestMatchingRequiresDonorRole() {
	_, err := s.svc.Matching(s.ctx, s.requester)
	s.requireCode(err, dErrors.CodeForbidden)
}

func (s *ServiceSuite) TestScheduleHappyPath() {
	req := s.createPending(blood.GroupONeg, "critical")

	updated, err := s.svc.Schedule(s.ctx, s.donorUser, req.ID, service.ScheduleInput{
		Date:     "2025-06-10",
		Time:     "10:00",
		Comments: "see you there",
	})
	s.Require().NoError(err)

	s.Equal(request.StatusScheduled, updated.Status)
	s.Require().True(updated.FulfilledBy.Valid)
	s.Equal(s.donorUser.ID, updated.FulfilledBy.UUID)
	s.Equal("2025-06-10", updated.AppointmentSlot.Date)
	s.Equal("10:00", updated.AppointmentSlot.Time)
	s.Equal("see you there", updated.DonorMessage)

	s.Require().Len(s.notifier.sent, 1)
	notice := s.notifier.sent[0]
	s.Equal("Priya Raman", notice.RequesterName)
	s.Equal("priya@example.com", notice.RequesterEmail)
	s.Equal("Arun Kumar", notice.DonorName)

	events, err := s.auditLog.ListByRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionScheduled, events[1].Action)
}

func (s *ServiceSuite) TestScheduleSwallowsNotificationFailure() {
	s.notifier.err = errors.New("smtp down")
	req := s.createPending(blood.GroupONeg, "moderate")

	updated, err := s.svc.Schedule(s.ctx, s.donorUser, req.ID, service.ScheduleInput{
		Date: "2025-06-10", Time: "10:00",
	})
	s.Require().NoError(err, "a failed send never rolls back the commitment")
	s.Equal(request.StatusScheduled, updated.Status)
}

func (s *ServiceSuite) TestScheduleDefersIneligibleDonor() {
	req := s.createPending(blood.GroupONeg, "moderate")

	s.Run("recent donation", func() {
		recent := s.now.AddDate(0, 0, -30)
		s.Require().NoError(s.donors.SetLastDonationDate(s.ctx, s.donorUser.ID, recent))

		_, err := s.svc.Schedule(s.ctx, s.donorUser, req.ID, service.ScheduleInput{
			Date: "2025-06-10", Time: "10:00",
		})
		s.requireCode(err, dErrors.CodeValidation)
		s.Contains(err.Error(), "60 more day(s)")
	})

	s.Run("pregnancy", func() {
		female := id.Actor{ID: uuid.New(), Role: id.RoleDonor}
		s.Require().NoError(s.donors.Create(s.ctx, &donor.Donor{
			ID:         female.ID,
			FullName:   "Meera Nair",
			Gender:     "Female",
			BloodGroup: blood.GroupONeg,
		}))

		_, err := s.svc.Schedule(s.ctx, female, req.ID, service.ScheduleInput{
			Date: "2025-06-10", Time: "10:00", Pregnant: true,
		})
		s.requireCode(err, dErrors.CodeValidation)
		s.Contains(err.Error(), "pregnancy")
	})

	// The request stayed untouched through both deferrals.
	got, err := s.requests.Get(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusPending, got.Status)
}

func (s *ServiceSuite) TestScheduleRequiresPendingStatus() {
	req := s.createPending(blood.GroupONeg, "moderate")
	_, err := s.svc.Schedule(s.ctx, s.donorUser, req.ID, service.ScheduleInput{
		Date: "2025-06-10", Time: "10:00",
	})
	s.Require().NoError(err)

	other := id.Actor{ID: uuid.New(), Role: id.RoleDonor}
	s.Require().NoError(s.donors.Create(s.ctx, &donor.Donor{
		ID:         other.ID,
		FullName:   "Second Donor",
		Gender:     "Male",
		BloodGroup: blood.GroupONeg,
	}))

	_, err = s.svc.Schedule(s.ctx, other, req.ID, service.ScheduleInput{
		Date: "2025-06-11", Time: "11:00",
	})
	s.requireCode(err, dErrors.CodePreconditionFailed)
}

// TestFullDonorFlow walks create -> schedule -> fulfil and checks the donor
// side effect.
func (s *ServiceSuite) TestFullDonorFlow() {
	req := s.createPending(blood.GroupONeg, "critical")

	_, err := s.svc.Schedule(s.ctx, s.donorUser, req.ID, service.ScheduleInput{
		Date: "2025-06-10", Time: "10:00",
	})
	s.Require().NoError(err)

	fulfilledAt := s.now.Add(9 * 24 * time.Hour)
	ctx := requestcontext.WithTime(context.Background(), fulfilledAt)
	updated, err := s.svc.UpdateStatus(ctx, s.requester, req.ID, request.StatusFulfilled, false)
	s.Require().NoError(err)
	s.Equal(request.StatusFulfilled, updated.Status)
	s.True(updated.FulfilledBy.Valid, "fulfiller fields survive the transition")

	d, err := s.donors.Get(ctx, s.donorUser.ID)
	s.Require().NoError(err)
	s.Require().NotNil(d.LastDonationDate)
	s.Equal(fulfilledAt, *d.LastDonationDate)

	events, err := s.auditLog.ListByRequest(ctx, req.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(audit.ActionStatusChanged, events[2].Action)
	s.Equal(string(request.StatusScheduled), events[2].FromStatus)
	s.Equal(string(request.StatusFulfilled), events[2].ToStatus)
}

// TestHospitalFulfilmentDeductsInventory covers the directed path: the target
// hospital fulfils a Pending request and opts into the stock deduction.
func (s *ServiceSuite) TestHospitalFulfilmentDeductsInventory() {
	req, err := s.svc.Create(s.ctx, s.requester, service.CreateInput{
		PatientName:     "Patient",
		BloodGroup:      "A+",
		Units:           3,
		HospitalName:    "City General",
		HospitalAddress: "1 Hospital Rd",
		TargetHospital:  s.hospUser.ID,
	})
	s.Require().NoError(err)

	updated, err := s.svc.UpdateStatus(s.ctx, s.hospUser, req.ID, request.StatusFulfilled, true)
	s.Require().NoError(err)
	s.Equal(request.StatusFulfilled, updated.Status)

	inv, err := s.hospitals.GetInventory(s.ctx, s.hospUser.ID)
	s.Require().NoError(err)
	s.Equal(2, inv["A_pos"], "5 units minus the 3 requested")
}

func (s *ServiceSuite) TestHospitalFulfilmentWithoutDeduction() {
	req, err := s.svc.Create(s.ctx, s.requester, service.CreateInput{
		PatientName:     "Patient",
		BloodGroup:      "A+",
		Units:           3,
		HospitalName:    "City General",
		HospitalAddress: "1 Hospital Rd",
		TargetHospital:  s.hospUser.ID,
	})
	s.Require().NoError(err)

	_, err = s.svc.UpdateStatus(s.ctx, s.hospUser, req.ID, request.StatusFulfilled, false)
	s.Require().NoError(err)

	inv, err := s.hospitals.GetInventory(s.ctx, s.hospUser.ID)
	s.Require().NoError(err)
	s.Equal(5, inv["A_pos"], "deduction is opt-in")
}

func (s *ServiceSuite) TestUpdateStatusAuthorization() {
	req := s.createPending(blood.GroupONeg, "moderate")

	s.Run("stranger is forbidden", func() {
		stranger := id.Actor{ID: uuid.New(), Role: id.RoleUser}
		_, err := s.svc.UpdateStatus(s.ctx, stranger, req.ID, request.StatusCancelled, false)
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("donor identity never authorizes status updates", func() {
		_, err := s.svc.UpdateStatus(s.ctx, s.donorUser, req.ID, request.StatusCancelled, false)
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("non-target hospital is forbidden", func() {
		_, err := s.svc.UpdateStatus(s.ctx, s.hospUser, req.ID, request.StatusRejected, false)
		s.requireCode(err, dErrors.CodeForbidden)
	})
}

func (s *ServiceSuite) TestUpdateStatusPreconditions() {
	s.Run("requester cannot fulfil a Pending request", func() {
		req := s.createPending(blood.GroupONeg, "moderate")
		_, err := s.svc.UpdateStatus(s.ctx, s.requester, req.ID, request.StatusFulfilled, false)
		s.requireCode(err, dErrors.CodePreconditionFailed)
	})

	s.Run("terminal statuses stay terminal", func() {
		req := s.createPending(blood.GroupONeg, "moderate")
		_, err := s.svc.UpdateStatus(s.ctx, s.requester, req.ID, request.StatusCancelled, false)
		s.Require().NoError(err)

		_, err = s.svc.UpdateStatus(s.ctx, s.requester, req.ID, request.StatusCancelled, false)
		s.requireCode(err, dErrors.CodePreconditionFailed)
	})

	s.Run("pending and scheduled are not valid targets", func() {
		req := s.createPending(blood.GroupONeg, "moderate")
		_, err := s.svc.UpdateStatus(s.ctx, s.requester, req.ID, request.StatusScheduled, false)
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *ServiceSuite) TestRejectAfterMatchKeepsFulfiller() {
	req := s.createPending(blood.GroupONeg, "moderate")
	_, err := s.svc.Schedule(s.ctx, s.donorUser, req.ID, service.ScheduleInput{
		Date: "2025-06-10", Time: "10:00",
	})
	s.Require().NoError(err)

	updated, err := s.svc.UpdateStatus(s.ctx, s.requester, req.ID, request.StatusRejected, false)
	s.Require().NoError(err)
	s.Equal(request.StatusRejected, updated.Status)
	s.True(updated.FulfilledBy.Valid, "history stays reconstructible")

	d, err := s.donors.Get(s.ctx, s.donorUser.ID)
	s.Require().NoError(err)
	s.Nil(d.LastDonationDate, "reject never stamps the donor")
}

func (s *ServiceSuite) TestDelete() {
	req := s.createPending(blood.GroupONeg, "moderate")

	s.Run("only the owner deletes", func() {
		stranger := id.Actor{ID: uuid.New(), Role: id.RoleUser}
		err := s.svc.Delete(s.ctx, stranger, req.ID)
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("owner delete removes the record", func() {
		s.Require().NoError(s.svc.Delete(s.ctx, s.requester, req.ID))
		_, err := s.svc.Get(s.ctx, s.requester, req.ID)
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *ServiceSuite) TestListMine() {
	first := s.createPending(blood.GroupONeg, "moderate")
	laterCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
	second, err := s.svc.Create(laterCtx, s.requester, service.CreateInput{
		PatientName:     "Patient",
		BloodGroup:      "A+",
		HospitalName:    "Apollo",
		HospitalAddress: "12 Main St",
	})
	s.Require().NoError(err)

	mine, err := s.svc.ListMine(s.ctx, s.requester)
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(second.ID, mine[0].ID, "newest first")
	s.Equal(first.ID, mine[1].ID)
}

func (s *ServiceSuite) TestDonorHistory() {
	req := s.createPending(blood.GroupONeg, "moderate")
	_, err := s.svc.Schedule(s.ctx, s.donorUser, req.ID, service.ScheduleInput{
		Date: "2025-06-10", Time: "10:00",
	})
	s.Require().NoError(err)

	history, err := s.svc.DonorHistory(s.ctx, s.donorUser)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(req.ID, history[0].ID)
}

func (s *ServiceSuite) TestAuditTrailAuthorization() {
	req := s.createPending(blood.GroupONeg, "moderate")

	s.Run("requester reads the trail", func() {
		events, err := s.svc.AuditTrail(s.ctx, s.requester, req.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
	})

	s.Run("donor cannot read the trail", func() {
		_, err := s.svc.AuditTrail(s.ctx, s.donorUser, req.ID)
		s.requireCode(err, dErrors.CodeForbidden)
	})
}

func TestHospitalRequestsListsAllStatuses(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	requests := request.NewInMemoryStore()
	hospitals := hospital.NewInMemoryStore()
	users := user.NewInMemoryStore()
	donors := donor.NewInMemoryStore()

	hospActor := id.Actor{ID: uuid.New(), Role: id.RoleHospital}
	requester := id.Actor{ID: uuid.New(), Role: id.RoleUser}
	inv := hospital.NewInventory()
	inv["O_neg"] = 10
	require.NoError(t, hospitals.Create(ctx, &hospital.Hospital{
		ID: hospActor.ID, HospitalName: "City General", Inventory: inv,
	}))
	require.NoError(t, users.Create(ctx, &user.User{ID: requester.ID, FullName: "R"}))

	svc := service.New(requests, donors, hospitals, users, &fakeNotifier{},
		slog.New(slog.DiscardHandler), nil)

	req, err := svc.Create(ctx, requester, service.CreateInput{
		PatientName:     "Patient",
		BloodGroup:      "O-",
		Units:           2,
		HospitalName:    "City General",
		HospitalAddress: "1 Hospital Rd",
		TargetHospital:  hospActor.ID,
	})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, hospActor, req.ID, request.StatusRejected, false)
	require.NoError(t, err)

	listed, err := svc.HospitalRequests(ctx, hospActor)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, request.StatusRejected, listed[0].Status)
}

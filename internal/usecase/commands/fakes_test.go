//go:build unit

package commands_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/domain/calendar"
	"consult-engine/internal/domain/consultant"
	"consult-engine/internal/domain/escrow"
	"consult-engine/internal/infra"
	"consult-engine/internal/infra/events"
	"consult-engine/internal/infra/repository"
	"consult-engine/internal/infra/slotledger"
	"consult-engine/internal/pkg/clock"
	"consult-engine/internal/pkg/config"
	"consult-engine/internal/usecase/commands"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// fakeRunner satisfies uow.Runner without a database; fakes ignore the DBTX.
type fakeRunner struct {
	txErr error
}

func (r *fakeRunner) DB() infra.DBTX { return nil }

func (r *fakeRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, db infra.DBTX) error) error {
	if r.txErr != nil {
		return r.txErr
	}
	return fn(ctx, nil)
}

type fakeBookings struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*booking.Booking
	versions  map[uuid.UUID]int64
	createErr error

	dueReminder []*booking.Booking
	dueStart    []*booking.Booking
	dueRelease  []*booking.Booking
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		byID:     map[uuid.UUID]*booking.Booking{},
		versions: map[uuid.UUID]int64{},
	}
}

func (f *fakeBookings) Create(_ context.Context, _ infra.DBTX, b *booking.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[b.ID()] = b
	f.versions[b.ID()] = b.Version()
	return nil
}

func (f *fakeBookings) Update(_ context.Context, _ infra.DBTX, b *booking.Booking, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versions[b.ID()] != expectedVersion {
		return infra.WrapRepoErr("booking version conflict", nil, infra.KindConflict)
	}
	f.byID[b.ID()] = b
	f.versions[b.ID()] = b.Version()
	return nil
}

func (f *fakeBookings) FindByID(_ context.Context, _ infra.DBTX, id uuid.UUID) (*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.byID[id]; ok {
		return b, nil
	}
	return nil, infra.WrapRepoErr("booking not found", nil, infra.KindNotFound)
}

func (f *fakeBookings) FindByHoldID(_ context.Context, _ infra.DBTX, holdID uuid.UUID) (*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.byID {
		if b.HoldID() == holdID {
			return b, nil
		}
	}
	return nil, infra.WrapRepoErr("booking not found", nil, infra.KindNotFound)
}

func (f *fakeBookings) FindByIntentID(_ context.Context, _ infra.DBTX, intentID string) (*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.byID {
		if b.Payment().ProcessorIntentID == intentID {
			return b, nil
		}
	}
	return nil, infra.WrapRepoErr("booking not found", nil, infra.KindNotFound)
}

func (f *fakeBookings) DueForReminder(context.Context, infra.DBTX, time.Time, time.Duration) ([]*booking.Booking, error) {
	return f.dueReminder, nil
}

func (f *fakeBookings) DueToStart(context.Context, infra.DBTX, time.Time) ([]*booking.Booking, error) {
	return f.dueStart, nil
}

func (f *fakeBookings) DueForAutoRelease(context.Context, infra.DBTX, time.Time, time.Duration) ([]*booking.Booking, error) {
	return f.dueRelease, nil
}

func (f *fakeBookings) StalePendingPayment(_ context.Context, _ infra.DBTX, cutoff time.Time) ([]*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stale []*booking.Booking
	for _, b := range f.byID {
		if b.Status() == booking.StatusPendingPayment && !b.CreatedAt().After(cutoff) {
			stale = append(stale, b)
		}
	}
	return stale, nil
}

type fakeEscrows struct {
	mu        sync.Mutex
	entries   map[uuid.UUID][]escrow.Entry
	appendErr error
}

func newFakeEscrows() *fakeEscrows {
	return &fakeEscrows{entries: map[uuid.UUID][]escrow.Entry{}}
}

func (f *fakeEscrows) Load(_ context.Context, _ infra.DBTX, bookingID uuid.UUID, currency string, status escrow.Status) (*escrow.Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return escrow.Reconstruct(bookingID, currency, status, f.entries[bookingID]), nil
}

func (f *fakeEscrows) Append(_ context.Context, _ infra.DBTX, entries []escrow.Entry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.entries[e.BookingID] = append(f.entries[e.BookingID], e)
	}
	return nil
}

func (f *fakeEscrows) balance(rootID uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, e := range f.entries[rootID] {
		sum += e.AmountCents
	}
	return sum
}

type fakeConsultants struct {
	consultants map[uuid.UUID]*consultant.Consultant
	calendars   map[uuid.UUID]*calendar.Calendar
}

func (f *fakeConsultants) FindByID(_ context.Context, _ infra.DBTX, id uuid.UUID) (*consultant.Consultant, error) {
	if c, ok := f.consultants[id]; ok {
		return c, nil
	}
	return nil, infra.WrapRepoErr("consultant not found", nil, infra.KindNotFound)
}

func (f *fakeConsultants) LoadCalendar(_ context.Context, _ infra.DBTX, id uuid.UUID) (*calendar.Calendar, error) {
	if cal, ok := f.calendars[id]; ok {
		return cal, nil
	}
	return nil, infra.WrapRepoErr("calendar not found", nil, infra.KindNotFound)
}

type fakeIdem struct {
	mu      sync.Mutex
	records map[string]*repository.IdempotencyRecord
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{records: map[string]*repository.IdempotencyRecord{}}
}

func idemKey(key, clientID uuid.UUID) string {
	return key.String() + "|" + clientID.String()
}

func (f *fakeIdem) TryInsert(_ context.Context, _ infra.DBTX, key, clientID uuid.UUID, endpoint, requestHash string, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[idemKey(key, clientID)]; ok {
		return false, nil
	}
	f.records[idemKey(key, clientID)] = &repository.IdempotencyRecord{
		Key:         key,
		ClientID:    clientID,
		Endpoint:    endpoint,
		RequestHash: requestHash,
		Status:      "processing",
		ExpiresAt:   expiresAt,
	}
	return true, nil
}

func (f *fakeIdem) Get(_ context.Context, _ infra.DBTX, key, clientID uuid.UUID) (*repository.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[idemKey(key, clientID)]; ok {
		return rec, nil
	}
	return nil, infra.WrapRepoErr("idempotency key not found", nil, infra.KindNotFound)
}

func (f *fakeIdem) MarkCompleted(_ context.Context, _ infra.DBTX, key, clientID, resultBookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[idemKey(key, clientID)]
	rec.Status = "completed"
	rec.ResultBookingID = &resultBookingID
	return nil
}

type fakePayEvents struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakePayEvents() *fakePayEvents {
	return &fakePayEvents{seen: map[string]bool{}}
}

func (f *fakePayEvents) Seen(_ context.Context, _ infra.DBTX, intentID, outcome string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[intentID+"|"+outcome], nil
}

func (f *fakePayEvents) TryRecord(_ context.Context, _ infra.DBTX, intentID, outcome string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := intentID + "|" + outcome
	if f.seen[k] {
		return false, nil
	}
	f.seen[k] = true
	return true, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	intents   int
	refunds   map[string]int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{refunds: map[string]int64{}}
}

func (g *fakeGateway) CreateIntent(context.Context, int64, string, map[string]string) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents++
	return fmt.Sprintf("pi_%d", g.intents), nil
}

func (g *fakeGateway) Refund(_ context.Context, intentID string, amountCents int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds[intentID] += amountCents
	return nil
}

func (g *fakeGateway) refunded(intentID string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds[intentID]
}

type publishedEvent struct {
	routingKey string
	snapshot   events.BookingSnapshot
}

type capturePublisher struct {
	mu        sync.Mutex
	published []publishedEvent
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, snapshot events.BookingSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedEvent{routingKey: routingKey, snapshot: snapshot})
}

func (p *capturePublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, len(p.published))
	for i, e := range p.published {
		keys[i] = e.routingKey
	}
	return keys
}

// env wires a lifecycle against the in-memory ledger and fakes, with one
// consultant available around the clock at 20000 cents per hour.
type env struct {
	clk          *clock.FakeClock
	ledger       *slotledger.MemoryLedger
	runner       *fakeRunner
	bookings     *fakeBookings
	escrows      *fakeEscrows
	idem         *fakeIdem
	payEvents    *fakePayEvents
	consultants  *fakeConsultants
	gw           *fakeGateway
	pub          *capturePublisher
	lifecycle    *commands.BookingLifecycle
	holdCfg      config.HoldConfig
	escrowCfg    config.EscrowConfig
	consultantID uuid.UUID
	clientID     uuid.UUID
}

// newEnv builds the default wiring; opts run before the lifecycle is
// constructed so tests can flip config knobs.
func newEnv(t *testing.T, opts ...func(*env)) *env {
	t.Helper()

	consultantID := uuid.New()
	cons, err := consultant.New(consultantID, "Dana Reyes", "standard", 20000, "USD")
	require.NoError(t, err)

	var windows []calendar.Window
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		windows = append(windows, calendar.Window{Weekday: wd, Span: calendar.Span{StartMin: 0, EndMin: 24 * 60}})
	}
	cal, err := calendar.New(consultantID, windows, nil, nil)
	require.NoError(t, err)

	catalog, err := consultant.ParseServiceCatalog("standard:30,deep-dive:60")
	require.NoError(t, err)
	fees, err := escrow.ParseFeeSchedule("standard:15")
	require.NoError(t, err)
	cancellation, err := escrow.ParseCancellationSchedule("24:100,12:50,0:0")
	require.NoError(t, err)

	e := &env{
		clk:       clock.NewFakeClock(baseTime),
		runner:    &fakeRunner{},
		bookings:  newFakeBookings(),
		escrows:   newFakeEscrows(),
		idem:      newFakeIdem(),
		payEvents: newFakePayEvents(),
		gw:        newFakeGateway(),
		pub:       &capturePublisher{},
		holdCfg: config.HoldConfig{
			TTL:             10 * time.Minute,
			GatewayMargin:   30 * time.Second,
			AlternativeSpan: 2 * time.Hour,
			MaxAlternatives: 3,
		},
		escrowCfg: config.EscrowConfig{
			AutoReleaseAfter: 72 * time.Hour,
			NoShowRefunds:    false,
			ReminderLead:     24 * time.Hour,
		},
		consultantID: consultantID,
		clientID:     uuid.New(),
	}
	e.ledger = slotledger.NewMemoryLedger(e.clk)
	for _, opt := range opts {
		opt(e)
	}

	e.consultants = &fakeConsultants{
		consultants: map[uuid.UUID]*consultant.Consultant{consultantID: cons},
		calendars:   map[uuid.UUID]*calendar.Calendar{consultantID: cal},
	}
	reservations := commands.NewReservationCoordinator(e.runner, e.ledger, e.consultants, catalog, e.clk, e.holdCfg)
	e.lifecycle = commands.NewBookingLifecycle(commands.LifecycleDeps{
		Runner:       e.runner,
		Bookings:     e.bookings,
		Escrows:      e.escrows,
		Consultants:  e.consultants,
		Idempotency:  e.idem,
		PayEvents:    e.payEvents,
		Ledger:       e.ledger,
		Gateway:      e.gw,
		Publisher:    e.pub,
		Reservations: reservations,
		Clock:        e.clk,
		Catalog:      catalog,
		Fees:         fees,
		Cancellation: cancellation,
		HoldCfg:      e.holdCfg,
		EscrowCfg:    e.escrowCfg,
	})
	return e
}

func (e *env) createInput(startAt time.Time) commands.CreateBookingInput {
	return commands.CreateBookingInput{
		IdempotencyKey: uuid.New(),
		ClientID:       e.clientID,
		ConsultantID:   e.consultantID,
		ServiceType:    "standard",
		StartAt:        startAt,
	}
}

// createPending books a slot and leaves it awaiting capture.
func (e *env) createPending(t *testing.T, startAt time.Time) *booking.Booking {
	t.Helper()
	res, err := e.lifecycle.CreateBooking(context.Background(), e.createInput(startAt))
	require.NoError(t, err)
	return res.Booking
}

// createConfirmed books a slot and runs the capture through to confirmation.
func (e *env) createConfirmed(t *testing.T, startAt time.Time) *booking.Booking {
	t.Helper()
	b := e.createPending(t, startAt)
	p := b.Payment()
	require.NoError(t, e.lifecycle.OnPaymentCaptured(context.Background(), p.ProcessorIntentID, p.AmountCents))
	require.Equal(t, booking.StatusConfirmed, b.Status())
	return b
}

func (e *env) slotFree(t *testing.T, startAt time.Time) bool {
	t.Helper()
	claims, err := e.ledger.ClaimedKeys(context.Background(), e.consultantID, startAt, startAt.Add(30*time.Minute))
	require.NoError(t, err)
	return len(claims) == 0
}

package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visit-scheduler/internal/acquire"
	"github.com/example/visit-scheduler/internal/orders"
)

type fakeSource struct {
	byCountry map[int][]orders.Order
	listErr   error

	setTimes map[int64]string
	deleted  []int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		byCountry: map[int][]orders.Order{},
		setTimes:  map[int64]string{},
	}
}

func (s *fakeSource) ListByCountry(_ context.Context, countryID int) ([]orders.Order, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.byCountry[countryID], nil
}

func (s *fakeSource) SetTimeForVisit(_ context.Context, orderNumber int64, t string) error {
	s.setTimes[orderNumber] = t
	return nil
}

func (s *fakeSource) Delete(_ context.Context, orderNumber int64) error {
	s.deleted = append(s.deleted, orderNumber)
	return nil
}

type fakeAcquirer struct {
	outcomes map[int64]acquire.Outcome
	errs     map[int64]error
	// elapsed simulates run duration when the Monitor's clock is scripted.
	elapsed time.Duration
	clock   *scriptedClock
	calls   []int64
}

func (a *fakeAcquirer) AcquireVisit(_ context.Context, o orders.Order) (acquire.Outcome, error) {
	a.calls = append(a.calls, o.OrderNumber)
	if a.clock != nil {
		a.clock.advance(a.elapsed)
	}
	if err := a.errs[o.OrderNumber]; err != nil {
		return acquire.Outcome{}, err
	}
	return a.outcomes[o.OrderNumber], nil
}

type scriptedClock struct {
	t time.Time
}

func (c *scriptedClock) now() time.Time          { return c.t }
func (c *scriptedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testMonitor(src *fakeSource, acq *fakeAcquirer, countries ...int) (*Monitor, *[]time.Duration) {
	var slept []time.Duration
	clock := acq.clock
	if clock == nil {
		clock = &scriptedClock{}
	}
	m := &Monitor{
		Orders:    src,
		Acquirer:  acq,
		Countries: countries,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sleep:     func(d time.Duration) { slept = append(slept, d) },
		Now:       clock.now,
		Rand:      rand.New(rand.NewSource(1)),
	}
	return m, &slept
}

func accepted(n int64, country int) orders.Order {
	return orders.Order{OrderNumber: n, SaveCode: "CODE", CountryID: country, IfAccepted: true}
}

func TestRunPassSkipsUnacceptedAndResolved(t *testing.T) {
	src := newFakeSource()
	fresh := orders.Order{OrderNumber: 1, SaveCode: "C", CountryID: 12}
	booked := accepted(2, 12)
	booked.TimeForVisit = "Вы записаны на прием 13.05.2025 в 09:30"
	live := accepted(3, 12)
	src.byCountry[12] = []orders.Order{fresh, booked, live}

	acq := &fakeAcquirer{outcomes: map[int64]acquire.Outcome{}}
	m, _ := testMonitor(src, acq, 12)

	require.NoError(t, m.RunPass(context.Background()))
	assert.Equal(t, []int64{3}, acq.calls)
}

func TestRunPassPersistsBookedTime(t *testing.T) {
	src := newFakeSource()
	src.byCountry[12] = []orders.Order{accepted(1, 12)}

	panel := "Вы записаны на прием 13.05.2025 в 09:30"
	acq := &fakeAcquirer{outcomes: map[int64]acquire.Outcome{
		1: {CentralPanel: panel, ActiveDays: []string{"13"}},
	}}
	m, _ := testMonitor(src, acq, 12)

	require.NoError(t, m.RunPass(context.Background()))
	assert.Equal(t, map[int64]string{1: panel}, src.setTimes)
	assert.Empty(t, src.deleted)
}

func TestRunPassDoesNotPersistNoSlotPanels(t *testing.T) {
	src := newFakeSource()
	src.byCountry[12] = []orders.Order{accepted(1, 12), accepted(2, 12)}

	acq := &fakeAcquirer{outcomes: map[int64]acquire.Outcome{
		1: {CentralPanel: "В настоящее время нет свободного времени для приема"},
		2: {}, // clean empty cycle
	}}
	m, _ := testMonitor(src, acq, 12)

	require.NoError(t, m.RunPass(context.Background()))
	assert.Empty(t, src.setTimes)
}

func TestRunPassDeletesBlockedOrderOnly(t *testing.T) {
	src := newFakeSource()
	src.byCountry[12] = []orders.Order{accepted(1, 12), accepted(2, 12), accepted(3, 12)}

	panel := "Вы записаны на прием 20.06.2025 в 11:15"
	acq := &fakeAcquirer{
		outcomes: map[int64]acquire.Outcome{3: {CentralPanel: panel}},
		errs:     map[int64]error{2: &acquire.BlockedError{OrderNumber: 2}},
	}
	m, _ := testMonitor(src, acq, 12)

	require.NoError(t, m.RunPass(context.Background()))
	assert.Equal(t, []int64{2}, src.deleted)
	assert.Equal(t, map[int64]string{3: panel}, src.setTimes)
	assert.Len(t, acq.calls, 3)
}

func TestRunPassContinuesPastFailures(t *testing.T) {
	src := newFakeSource()
	src.byCountry[12] = []orders.Order{accepted(1, 12), accepted(2, 12)}

	acq := &fakeAcquirer{
		outcomes: map[int64]acquire.Outcome{},
		errs:     map[int64]error{1: errors.New("chrome crashed"), 2: acquire.ErrAttemptsExhausted},
	}
	m, _ := testMonitor(src, acq, 12)

	require.NoError(t, m.RunPass(context.Background()))
	assert.Len(t, acq.calls, 2)
	assert.Empty(t, src.deleted)
	assert.Empty(t, src.setTimes)
}

func TestRunPassSlotBudget(t *testing.T) {
	src := newFakeSource()
	var all []orders.Order
	for n := int64(1); n <= 4; n++ {
		all = append(all, accepted(n, 12))
	}
	src.byCountry[12] = all

	// Each acquisition "takes" 5 minutes against a 15-minute slot.
	clock := &scriptedClock{t: time.Unix(0, 0)}
	acq := &fakeAcquirer{
		outcomes: map[int64]acquire.Outcome{},
		clock:    clock,
		elapsed:  5 * time.Minute,
	}
	m, slept := testMonitor(src, acq, 12)

	require.NoError(t, m.RunPass(context.Background()))
	require.Len(t, *slept, 4)
	for _, d := range *slept {
		assert.Equal(t, 10*time.Minute, d)
	}
}

func TestRunPassNeverSleepsNegative(t *testing.T) {
	src := newFakeSource()
	src.byCountry[12] = []orders.Order{accepted(1, 12), accepted(2, 12)}

	// Two orders get a 30-minute slot each; runs overshoot it.
	clock := &scriptedClock{t: time.Unix(0, 0)}
	acq := &fakeAcquirer{
		outcomes: map[int64]acquire.Outcome{},
		clock:    clock,
		elapsed:  45 * time.Minute,
	}
	m, slept := testMonitor(src, acq, 12)

	require.NoError(t, m.RunPass(context.Background()))
	assert.Empty(t, *slept)
}

func TestRunPassCapsBatch(t *testing.T) {
	src := newFakeSource()
	for n := int64(1); n <= 10; n++ {
		src.byCountry[12] = append(src.byCountry[12], accepted(n, 12))
	}

	acq := &fakeAcquirer{outcomes: map[int64]acquire.Outcome{}}
	m, _ := testMonitor(src, acq, 12)
	m.MaxPerPass = 4

	require.NoError(t, m.RunPass(context.Background()))
	assert.Len(t, acq.calls, 4)
}

func TestRunPassMergesCountries(t *testing.T) {
	src := newFakeSource()
	src.byCountry[12] = []orders.Order{accepted(1, 12)}
	src.byCountry[4] = []orders.Order{accepted(2, 4)}

	acq := &fakeAcquirer{outcomes: map[int64]acquire.Outcome{}}
	m, _ := testMonitor(src, acq, 12, 4)

	require.NoError(t, m.RunPass(context.Background()))
	assert.ElementsMatch(t, []int64{1, 2}, acq.calls)
}

func TestRunPassIdlesWhenEmpty(t *testing.T) {
	src := newFakeSource()
	acq := &fakeAcquirer{}
	m, slept := testMonitor(src, acq, 12)

	require.NoError(t, m.RunPass(context.Background()))
	assert.Empty(t, acq.calls)
	assert.Equal(t, []time.Duration{time.Hour}, *slept)
}

func TestRunPassPropagatesLoadError(t *testing.T) {
	src := newFakeSource()
	src.listErr = errors.New("db down")
	m, _ := testMonitor(src, &fakeAcquirer{}, 12)

	err := m.RunPass(context.Background())
	require.ErrorIs(t, err, src.listErr)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	src.byCountry[12] = []orders.Order{accepted(1, 12)}
	acq := &fakeAcquirer{outcomes: map[int64]acquire.Outcome{}}
	m, _ := testMonitor(src, acq, 12)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

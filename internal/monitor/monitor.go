// Package monitor runs the endless acquisition loop over all watched orders,
// spreading one pass over roughly an hour.
package monitor

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/example/visit-scheduler/internal/acquire"
	"github.com/example/visit-scheduler/internal/orders"
)

// OrderSource is the slice of the order store the loop needs.
type OrderSource interface {
	ListByCountry(ctx context.Context, countryID int) ([]orders.Order, error)
	SetTimeForVisit(ctx context.Context, orderNumber int64, timeForVisit string) error
	Delete(ctx context.Context, orderNumber int64) error
}

// VisitAcquirer runs the acquisition flow for one order.
type VisitAcquirer interface {
	AcquireVisit(ctx context.Context, o orders.Order) (acquire.Outcome, error)
}

// Monitor cycles over the watched countries' orders forever. Each pass caps
// the batch, shuffles it and divides one hour between its slots, so a full
// pass takes about an hour regardless of batch size.
type Monitor struct {
	Orders    OrderSource
	Acquirer  VisitAcquirer
	Countries []int
	Logger    *slog.Logger

	MaxPerPass int // default 200

	// Injectable for tests.
	Sleep func(time.Duration)
	Now   func() time.Time
	Rand  *rand.Rand
}

func (m *Monitor) maxPerPass() int {
	if m.MaxPerPass > 0 {
		return m.MaxPerPass
	}
	return 200
}

func (m *Monitor) sleep(d time.Duration) {
	if m.Sleep != nil {
		m.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (m *Monitor) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Monitor) rand() *rand.Rand {
	if m.Rand == nil {
		m.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m.Rand
}

func (m *Monitor) log() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Run loops passes until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.log().Info("monitor started", slog.Any("countries", m.Countries))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.RunPass(ctx); err != nil {
			return err
		}
	}
}

// RunPass loads the batch and works through it once. Only a broken load or a
// cancelled context stop the pass; per-order failures are logged and the pass
// moves on.
func (m *Monitor) RunPass(ctx context.Context) error {
	batch, err := m.loadBatch(ctx)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		m.log().Info("no orders to monitor, idling")
		m.sleep(time.Hour)
		return nil
	}

	slotBudget := time.Hour / time.Duration(len(batch))
	m.log().Info("pass started",
		slog.Int("orders", len(batch)),
		slog.Duration("slot_budget", slotBudget))

	for _, o := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := m.now()
		m.checkOrder(ctx, o)

		if remaining := slotBudget - m.now().Sub(start); remaining > 0 {
			m.sleep(remaining)
		}
	}
	return nil
}

func (m *Monitor) loadBatch(ctx context.Context) ([]orders.Order, error) {
	var batch []orders.Order
	for _, countryID := range m.Countries {
		list, err := m.Orders.ListByCountry(ctx, countryID)
		if err != nil {
			return nil, err
		}
		batch = append(batch, list...)
	}
	if max := m.maxPerPass(); len(batch) > max {
		batch = batch[:max]
	}
	m.rand().Shuffle(len(batch), func(i, j int) {
		batch[i], batch[j] = batch[j], batch[i]
	})
	return batch, nil
}

func (m *Monitor) checkOrder(ctx context.Context, o orders.Order) {
	log := m.log().With(slog.Int64("order", o.OrderNumber))

	if !o.IfAccepted {
		log.Info("order not yet accepted, skipping")
		return
	}
	if o.Resolved() {
		log.Info("order already confirmed, skipping")
		return
	}

	out, err := m.Acquirer.AcquireVisit(ctx, o)
	switch {
	case acquire.IsBlocked(err):
		log.Warn("order blocked by portal, removing")
		if derr := m.Orders.Delete(ctx, o.OrderNumber); derr != nil {
			log.Error("delete blocked order", slog.Any("error", derr))
		}
		return
	case err != nil:
		log.Error("acquisition failed", slog.Any("error", err))
		return
	}

	if out.CentralPanel == "" {
		log.Info("nothing booked this cycle")
		return
	}
	if acquire.NoSlots(out.CentralPanel) {
		log.Info("no free windows")
		return
	}

	log.Info("visit booked, persisting time")
	if err := m.Orders.SetTimeForVisit(ctx, o.OrderNumber, out.CentralPanel); err != nil {
		log.Error("persist visit time", slog.Any("error", err))
	}
}

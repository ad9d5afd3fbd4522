package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"medstore/m/internal/catalog"
	"medstore/m/internal/query"
	"medstore/m/internal/store"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Report is the outcome of one stock alert run.
type Report struct {
	Counts   query.Counts
	Expiring int
}

// StockAlert logs catalog health and medicines close to expiry.
type StockAlert struct {
	store      *store.Store
	expiryDays int
	now        func() time.Time
}

func NewStockAlert(s *store.Store, expiryDays int) *StockAlert {
	return &StockAlert{store: s, expiryDays: expiryDays, now: time.Now}
}

func (a *StockAlert) Run(ctx context.Context) (Report, error) {
	meds, err := catalog.New(a.store).List(ctx)
	if err != nil {
		return Report{}, err
	}
	today := a.now()
	counts := query.Dashboard(meds, today)
	expiring := query.ExpiringWithin(meds, today, a.expiryDays)

	zap.S().Infow("stock alert",
		"total", counts.Total,
		"low", counts.Low,
		"out", counts.Out,
		"expired", counts.Expired,
		"expiring", len(expiring),
	)
	for _, m := range expiring {
		zap.S().Warnw("medicine expiring soon", "id", m.ID, "name", m.Name, "expiry", m.Expiry, "stock", m.Stock)
	}
	return Report{Counts: counts, Expiring: len(expiring)}, nil
}

// Schedule starts a cron scheduler running the alert on spec. Stop the
// returned scheduler on shutdown.
func Schedule(spec string, alert *StockAlert) (*cron.Cron, error) {
	sched := cron.New(cron.WithParser(cronParser))
	_, err := sched.AddFunc(spec, func() {
		if _, err := alert.Run(context.Background()); err != nil {
			zap.S().Errorf("stock alert job error %s", err.Error())
		}
	})
	if err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}

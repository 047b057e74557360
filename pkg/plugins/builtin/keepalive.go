package builtin

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/harness/pkg/config"
	"github.com/platinummonkey/harness/pkg/observability"
	"github.com/platinummonkey/harness/pkg/plugins"
	"github.com/platinummonkey/harness/pkg/version"
)

// Keepalive logs a heartbeat every interval seconds, runs times (0 for
// until the context is done). It logs to rt.Log, or to the logger carried by
// ctx when the runtime has none.
//
//	[keepalive]
//	interval = 60
//	runs = 0
type Keepalive struct{}

func (p *Keepalive) Manifest() *plugins.Manifest {
	return &plugins.Manifest{
		ABIVersion: plugins.ABIVersion,
		Brief:      "Keepalive plugin",
		Version:    version.New(0, 0, 1),
		Requires:   []string{"logger"},
	}
}

func (p *Keepalive) Start(ctx context.Context, rt *plugins.Runtime) error {
	r := config.NewOptionReader(rt.Section, nil, map[string]string{
		"interval": "60",
		"runs":     "0",
	})

	interval, err := r.Duration("interval")
	if err != nil {
		return err
	}
	if interval <= 0 {
		return &config.Error{Kind: config.KindInvalidValue, Section: rt.Section.String(), Option: "interval", Msg: "must be positive"}
	}
	runs, err := r.Int("runs")
	if err != nil {
		return err
	}
	if runs < 0 {
		return &config.Error{Kind: config.KindInvalidValue, Section: rt.Section.String(), Option: "runs", Msg: "must not be negative"}
	}

	log := rt.Log
	if log == nil {
		log = observability.GetLogger(ctx)
	}

	log.Infof("%s started with interval %d", rt.Name, int(interval.Seconds()))
	if runs > 0 {
		log.Infof("will run %d time(s)", runs)
	}

	done := make(chan struct{})
	var once sync.Once
	var count int64

	c := cron.New(cron.WithLogger(cron.PrintfLogger(log)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		log.Info(rt.Name)
		if runs > 0 && atomic.AddInt64(&count, 1) >= int64(runs) {
			once.Do(func() { close(done) })
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule heartbeat: %w", err)
	}

	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	return nil
}

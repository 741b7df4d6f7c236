package kube

import (
	"context"
	"sync"
	"time"

	"codnect.io/chrono"
	"github.com/GlintPay/gkps/backend"
	"github.com/rs/zerolog/log"
)

const DefaultPollPeriod = 15 * time.Second

type polled struct {
	kind      backend.Kind
	namespace string
	name      string
	onUpdate  UpdateFunc
}

// Poller re-fetches ConfigMaps and Secrets at a fixed rate, for clusters where watches are unavailable
type Poller struct {
	client  *Client
	period  time.Duration
	targets []polled

	scheduler chrono.TaskScheduler
	task      chrono.ScheduledTask
	stopOnce  sync.Once
}

func (c *Client) NewPoller(period time.Duration) *Poller {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	return &Poller{client: c, period: period}
}

func (p *Poller) Add(kind backend.Kind, namespace, name string, onUpdate UpdateFunc) {
	p.targets = append(p.targets, polled{kind: kind, namespace: namespace, name: name, onUpdate: onUpdate})
}

// Start schedules polling until Stop is called or the context is done
func (p *Poller) Start(ctx context.Context) error {
	p.scheduler = chrono.NewDefaultTaskScheduler()

	log.Info().Msgf("Scheduling poll of %d sources every %v", len(p.targets), p.period)

	task, err := p.scheduler.ScheduleAtFixedRate(func(_ context.Context) {
		p.Poll(ctx)
	}, p.period)
	if err != nil {
		return err
	}
	p.task = task

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Poll fetches every target once. Missing objects are reported as empty, transport failures skipped.
func (p *Poller) Poll(ctx context.Context) {
	for _, each := range p.targets {
		p.client.invalidate(each.kind, each.namespace, each.name)

		src, err := p.client.fetch(ctx, each.kind, each.namespace, each.name)
		switch {
		case err == nil:
			each.onUpdate(src.Entries, nil)
		case backend.IsNotFound(err):
			each.onUpdate(map[string]string{}, nil)
		case backend.IsUnavailable(err):
			log.Warn().Err(err).Msgf("Poll of %s [%s/%s] failed", each.kind, each.namespace, each.name)
		default:
			each.onUpdate(nil, err)
		}
	}
}

func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		if p.task != nil {
			p.task.Cancel()
		}
		if p.scheduler != nil {
			<-p.scheduler.Shutdown()
		}
	})
}

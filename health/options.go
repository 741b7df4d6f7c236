package health

import (
	"github.com/go-chi/chi/v5"
	"github.com/heptiolabs/healthcheck"
)

type opts struct {
	ChiMux          *chi.Mux
	readinessChecks map[string]healthcheck.Check
}

type Opt func(*opts)

func WithChiMux(mux *chi.Mux) Opt {
	return func(o *opts) {
		o.ChiMux = mux
	}
}

func WithReadinessCheck(name string, check healthcheck.Check) Opt {
	return func(o *opts) {
		if o.readinessChecks == nil {
			o.readinessChecks = make(map[string]healthcheck.Check)
		}
		o.readinessChecks[name] = check
	}
}

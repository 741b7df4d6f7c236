package api

import (
	"strings"
	"sync/atomic"

	"github.com/GlintPay/gkps/aggregator"
	"github.com/GlintPay/gkps/binding"
	"github.com/rs/zerolog/log"
)

const GreetingsPrefix = "bean"

// Greetings are the message templates of the example application, one `%s` for the name
type Greetings struct {
	Greeting string
	Farewell string
	Morning  string
}

func DefaultGreetings() Greetings {
	return Greetings{
		Greeting: "Hello, %s!",
		Farewell: "Goodbye, %s!",
		Morning:  "Good morning, %s!",
	}
}

// Greeter keeps Greetings bound to the merged configuration, rebinding whenever a `bean.` key changes
type Greeter struct {
	agg         *aggregator.Aggregator
	current     atomic.Pointer[Greetings]
	unsubscribe func()
}

func NewGreeter(agg *aggregator.Aggregator) (*Greeter, error) {
	g := &Greeter{agg: agg}
	if err := g.rebind(); err != nil {
		return nil, err
	}

	g.unsubscribe = agg.OnChange(func(changed []string) {
		for _, k := range changed {
			if strings.HasPrefix(k, GreetingsPrefix+".") {
				if err := g.rebind(); err != nil {
					log.Error().Err(err).Msg("Rebinding greetings failed, keeping previous values")
				}
				return
			}
		}
	})

	return g, nil
}

func (g *Greeter) Current() Greetings {
	return *g.current.Load()
}

func (g *Greeter) Close() {
	g.unsubscribe()
}

func (g *Greeter) rebind() error {
	bound := DefaultGreetings()
	if err := binding.Bind(g.agg.Current().Values(), GreetingsPrefix, &bound); err != nil {
		return err
	}

	g.current.Store(&bound)
	log.Debug().Msgf("Greetings bound: %+v", bound)
	return nil
}

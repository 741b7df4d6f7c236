package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/GlintPay/gkps/aggregator"
	"github.com/GlintPay/gkps/config"
	gotel "github.com/GlintPay/gkps/otel"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/riandyrn/otelchi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	applicationJSON = "application/json"
	defaultName     = "World"
)

type Routing struct {
	ServerName   string
	ParentRouter chi.Router

	AppConfig  config.ApplicationConfiguration
	Aggregator *aggregator.Aggregator
	Greeter    *Greeter

	// RequestLogger enables httplog request logging when set
	RequestLogger *zerolog.Logger
}

func (rtr *Routing) SetupFunctionalRoutes(r chi.Router) error {
	if rtr.Aggregator == nil || rtr.Greeter == nil {
		return errors.New("routing needs an aggregator and a greeter")
	}

	if e := rtr.enableOTelForRouter(r); e != nil {
		return e
	}

	if rtr.RequestLogger != nil {
		r.Use(httplog.RequestLogger(*rtr.RequestLogger))
	}

	r.Get("/api/greeting", rtr.greetingHandler("greeting", func(g Greetings) string { return g.Greeting }))
	r.Get("/api/farewell", rtr.greetingHandler("farewell", func(g Greetings) string { return g.Farewell }))
	r.Get("/api/morning", rtr.greetingHandler("morning", func(g Greetings) string { return g.Morning }))
	r.Get("/actuator/env", rtr.envHandler())

	return nil
}

func (rtr *Routing) greetingHandler(spanName string, template func(Greetings) string) http.HandlerFunc {
	var counter atomic.Int64

	return func(w http.ResponseWriter, r *http.Request) {
		_, span := gotel.GetTracer(r.Context()).Start(r.Context(), spanName, gotel.ServerOptions)
		defer span.End()

		name := r.URL.Query().Get("name")
		if name == "" {
			name = defaultName
		}

		greeting := Greeting{
			ID:      counter.Add(1),
			Content: render(template(rtr.Greeter.Current()), name),
		}

		bytes, err := marshalResponseJson(greeting, rtr.prettyPrint(r))
		rtr.handleOutput(w, err, bytes)
	}
}

// render fills the name into a template. Templates without a verb are returned as they are.
func render(template string, name string) string {
	if !strings.Contains(template, "%") {
		return template
	}
	return fmt.Sprintf(template, name)
}

func (rtr *Routing) envHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := rtr.Aggregator.Current()

		response := EnvResponse{
			Precedence: current.Sources(),
			Properties: make(map[string]Property, current.Len()),
		}
		if response.Precedence == nil {
			response.Precedence = []string{}
		}

		for _, k := range current.Keys() {
			v, _ := current.Get(k)
			origin, _ := current.Origin(k)
			response.Properties[k] = Property{Value: v, Source: origin}
		}

		for _, each := range current.Errors() {
			response.Degraded = append(response.Degraded, each.Source)
		}

		w.Header().Set("X-Resolution-PrecedenceDisplayMessage", current.Precedence())

		bytes, err := marshalResponseJson(response, rtr.prettyPrint(r))
		rtr.handleOutput(w, err, bytes)
	}
}

func marshalResponseJson(val interface{}, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(val, "", "  ")
	}
	return json.Marshal(val)
}

func (rtr *Routing) handleOutput(w http.ResponseWriter, err error, bytes []byte) {
	if err != nil {
		rtr.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", applicationJSON)
	_, _ = w.Write(bytes)

	if rtr.AppConfig.Logging.LogResponses {
		log.Debug().Msgf("Response: %s", string(bytes))
	}
}

func (rtr *Routing) writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusInternalServerError)

	info := map[string]interface{}{"message": err.Error()}
	_ = json.NewEncoder(w).Encode(info)

	log.Error().Err(err).Stack().Msg("Response error")
}

func (rtr *Routing) prettyPrint(r *http.Request) bool {
	return overrideBooleanDefault(r.URL.Query().Get("pretty"), false)
}

func (rtr *Routing) enableOTelForRouter(r chi.Router) error {
	if !rtr.AppConfig.Tracing.Enabled {
		return nil
	}

	if rtr.ServerName == "" || rtr.ParentRouter == nil {
		return errors.New("OTel not configured")
	}

	r.Use(otelchi.Middleware(rtr.ServerName, otelchi.WithChiRoutes(rtr.ParentRouter)))

	log.Info().Msgf("OpenTelemetry trace is enabled")
	return nil
}

func overrideBooleanDefault(queryValue string, defaultVal bool) bool {
	reqVal := strings.ToLower(queryValue)
	if reqVal == "true" {
		return true
	} else if reqVal == "false" {
		return false
	}
	return defaultVal
}

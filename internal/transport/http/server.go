package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omerorhan/erp-settings-service/internal/service"
	"github.com/omerorhan/erp-settings-service/internal/storage"
)

// Service is the part of the settings service exposed over HTTP.
type Service interface {
	IsReady() bool
	Settings() []storage.SystemSetting
	GetSetting(key string) (string, bool)
	Rates() storage.Rates
	DefaultCurrency() string
	GetCurrencyLabel(code string) string
	ConvertAmount(amount float64, from string) float64
	FormatAmount(amount float64, code string) string
}

// Server dependencies for HTTP Server functions
type Server struct {
	Service  Service
	router   *mux.Router
	logger   log.Logger
	gatherer prometheus.Gatherer
}

// NewServer builds the router. A nil gatherer serves the default registry
// on /metrics.
func NewServer(s Service, logger log.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	server := &Server{
		Service:  s,
		router:   mux.NewRouter(),
		logger:   logger,
		gatherer: gatherer,
	}
	server.routes()
	return server
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/healthz", s.health()).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/settings", s.listSettings()).Methods(http.MethodGet)
	api.HandleFunc("/settings/{key}", s.getSetting()).Methods(http.MethodGet)
	api.HandleFunc("/currency", s.defaultCurrency()).Methods(http.MethodGet)
	api.HandleFunc("/currency/{code}/label", s.currencyLabel()).Methods(http.MethodGet)
	api.HandleFunc("/rates", s.rates()).Methods(http.MethodGet)
	api.HandleFunc("/convert", s.convert()).Methods(http.MethodPost)
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(rw, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		defer func(begin time.Time) {
			level.Debug(s.logger).Log("method", r.Method, "path", r.URL.Path, "took", time.Since(begin))
		}(time.Now())
		next.ServeHTTP(rw, r)
	})
}

func (s *Server) health() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.Service.IsReady() {
			s.writeJSON(rw, http.StatusServiceUnavailable, map[string]string{"state": "loading"})
			return
		}
		s.writeJSON(rw, http.StatusOK, map[string]string{"state": "ready"})
	}
}

func (s *Server) listSettings() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		s.writeJSON(rw, http.StatusOK, s.Service.Settings())
	}
}

func (s *Server) getSetting() http.HandlerFunc {
	type response struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		value, ok := s.Service.GetSetting(key)
		if !ok {
			s.writeError(rw, http.StatusNotFound, "setting not found")
			return
		}
		s.writeJSON(rw, http.StatusOK, response{Key: key, Value: value})
	}
}

type currencyResponse struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

func (s *Server) defaultCurrency() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		code := s.Service.DefaultCurrency()
		s.writeJSON(rw, http.StatusOK, currencyResponse{Code: code, Label: s.Service.GetCurrencyLabel(code)})
	}
}

func (s *Server) currencyLabel() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		code := mux.Vars(r)["code"]
		s.writeJSON(rw, http.StatusOK, currencyResponse{Code: code, Label: s.Service.GetCurrencyLabel(code)})
	}
}

func (s *Server) rates() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		s.writeJSON(rw, http.StatusOK, s.Service.Rates())
	}
}

// convert produces HTTP handler for conversions into the default currency
func (s *Server) convert() http.HandlerFunc {
	type request struct {
		Amount *float64 `json:"amount"`
		From   string   `json:"from"`
	}

	type response struct {
		Amount    float64 `json:"amount"`
		From      string  `json:"from"`
		To        string  `json:"to"`
		Converted float64 `json:"converted"`
		Formatted string  `json:"formatted"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req request
		if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<16)).Decode(&req); err != nil {
			s.writeError(rw, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Amount == nil {
			s.writeError(rw, http.StatusBadRequest, "amount is required")
			return
		}

		converted := s.Service.ConvertAmount(*req.Amount, req.From)
		from := req.From
		if from == "" {
			from = service.DefaultConvertFrom
		}
		s.writeJSON(rw, http.StatusOK, response{
			Amount:    *req.Amount,
			From:      from,
			To:        s.Service.DefaultCurrency(),
			Converted: converted,
			Formatted: s.Service.FormatAmount(converted, ""),
		})
	}
}

func (s *Server) writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		level.Warn(s.logger).Log("msg", "failed json encoding", "err", err)
	}
}

func (s *Server) writeError(rw http.ResponseWriter, status int, msg string) {
	s.writeJSON(rw, status, map[string]string{"error": msg})
}

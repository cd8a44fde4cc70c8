// Package web provides the HTTP interface of the night-light daemon: the
// status page, its JSON form, the settings API and Prometheus metrics.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/silen72/night-light/internal/control"
	"github.com/silen72/night-light/internal/logic"
	"github.com/silen72/night-light/internal/status"
)

// commandTimeout bounds how long a request waits for the control loop.
const commandTimeout = 2 * time.Second

// Lamp runs commands inside the control loop.
type Lamp interface {
	Do(ctx context.Context, fn control.Command) error
	Gesture(ctx context.Context, b logic.Button, g logic.Gesture) error
}

// Preferences are the network and web preferences editable over HTTP.
type Preferences interface {
	SetWifiHostname(string) (bool, error)
	SetWifiApSsid(string) (bool, error)
	SetWifiApPassphrase(string) (bool, error)
	SetWifiApIPAddress(string) (bool, error)
	SetWifiApNetmask(string) (bool, error)
	SetWifiStaSsid(string) (bool, error)
	SetWifiStaPassphrase(string) (bool, error)
	WebAuth() (user, password string)
	SetWebAuth(user, password string) (bool, error)
}

// Options configures a Server. Nil collaborators disable the routes that
// need them.
type Options struct {
	Addr        string
	Tracker     *status.Tracker
	Lamp        Lamp
	AccessPoint logic.AccessPointRequester
	Prefs       Preferences
	// Auth requires the stored web credentials on every route.
	Auth    bool
	Metrics *Metrics
	// Limiter throttles state changing requests.
	Limiter *rate.Limiter
	Log     zerolog.Logger
}

// Server serves the status page and the API over HTTP.
type Server struct {
	httpServer *http.Server
	opts       Options
	log        zerolog.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{opts: opts, log: opts.Log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	if opts.Lamp != nil {
		mux.HandleFunc("GET /api/settings", s.handleGetSettings)
		mux.HandleFunc("POST /api/settings", s.limited(s.handleSetSettings))
		mux.HandleFunc("POST /api/gesture", s.limited(s.handleGesture))
	}
	if opts.AccessPoint != nil {
		mux.HandleFunc("POST /api/ap", s.limited(s.handleAccessPoint))
	}
	if opts.Prefs != nil {
		mux.HandleFunc("POST /api/wifi", s.limited(s.handleWifi))
		mux.HandleFunc("POST /api/auth", s.limited(s.handleAuth))
	}
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	var handler http.Handler = mux
	if opts.Auth && opts.Prefs != nil {
		handler = s.basicAuth(mux)
	}
	if opts.Metrics != nil {
		handler = opts.Metrics.countRequests(handler)
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantUser, wantPass := s.opts.Prefs.WebAuth()
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="night-light"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	if s.opts.Limiter == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.opts.Limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		h(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Error().Err(err).Msg("render status page")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	var settings logic.Settings
	err := s.opts.Lamp.Do(ctx, func(c *logic.Controller, _ time.Time) {
		settings = c.Settings()
	})
	if err != nil {
		s.loopError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(settings, logic.AllSettings(), false))
}

// handleSetSettings applies every setting in the form. Keys are the short
// preference keys or the long names; save=true persists them.
func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	save := false
	type change struct {
		setting logic.Setting
		value   int
	}
	var changes []change
	for key, values := range r.PostForm {
		if key == "save" {
			b, err := strconv.ParseBool(values[0])
			if err != nil {
				writeError(w, http.StatusBadRequest, "save must be a boolean")
				return
			}
			save = b
			continue
		}
		setting, ok := logic.SettingByKey(key)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown setting "+key)
			return
		}
		v, err := strconv.Atoi(values[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, key+" must be an integer")
			return
		}
		lo, hi := setting.Range()
		if v < lo || v > hi {
			writeError(w, http.StatusBadRequest, key+" must be between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi))
			return
		}
		changes = append(changes, change{setting, v})
	}
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "no settings given")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	var settings logic.Settings
	err := s.opts.Lamp.Do(ctx, func(c *logic.Controller, now time.Time) {
		for _, ch := range changes {
			c.Set(now, ch.setting, ch.value, save)
		}
		settings = c.Settings()
	})
	if err != nil {
		s.loopError(w, err)
		return
	}

	changed := make([]logic.Setting, 0, len(changes))
	for _, ch := range changes {
		changed = append(changed, ch.setting)
	}
	s.log.Info().Int("settings", len(changes)).Bool("save", save).Msg("settings changed over http")
	writeJSON(w, http.StatusOK, newSettingsResponse(settings, changed, save))
}

func (s *Server) handleGesture(w http.ResponseWriter, r *http.Request) {
	b, ok := logic.ParseButton(r.FormValue("button"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown button")
		return
	}
	g, ok := logic.ParseGesture(r.FormValue("gesture"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown gesture")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	if err := s.opts.Lamp.Gesture(ctx, b, g); err != nil {
		s.loopError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, gestureResponse{Button: b.String(), Gesture: g.String()})
}

func (s *Server) handleAccessPoint(w http.ResponseWriter, r *http.Request) {
	s.log.Warn().Str("remote", r.RemoteAddr).Msg("access point mode requested over http")
	s.opts.AccessPoint.RequestAccessPointMode()
	writeJSON(w, http.StatusAccepted, map[string]string{"result": "requested"})
}

func (s *Server) handleWifi(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := s.opts.Prefs
	setters := []struct {
		field string
		set   func(string) (bool, error)
	}{
		{"hostname", p.SetWifiHostname},
		{"ap_ssid", p.SetWifiApSsid},
		{"ap_passphrase", p.SetWifiApPassphrase},
		{"ap_ip", p.SetWifiApIPAddress},
		{"ap_netmask", p.SetWifiApNetmask},
		{"sta_ssid", p.SetWifiStaSsid},
		{"sta_passphrase", p.SetWifiStaPassphrase},
	}

	var res fieldsResponse
	for _, f := range setters {
		if !r.PostForm.Has(f.field) {
			continue
		}
		ok, err := f.set(r.PostForm.Get(f.field))
		if err != nil {
			s.log.Error().Err(err).Str("field", f.field).Msg("store wifi preference")
			writeError(w, http.StatusInternalServerError, "failed to store "+f.field)
			return
		}
		if ok {
			res.Accepted = append(res.Accepted, f.field)
		} else {
			res.Rejected = append(res.Rejected, f.field)
		}
	}
	writeJSON(w, res.status(), res)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	ok, err := s.opts.Prefs.SetWebAuth(r.FormValue("user"), r.FormValue("password"))
	if err != nil {
		s.log.Error().Err(err).Msg("store web credentials")
		writeError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}
	res := fieldsResponse{}
	if ok {
		res.Accepted = []string{"user", "password"}
	} else {
		res.Rejected = []string{"user", "password"}
	}
	writeJSON(w, res.status(), res)
}

func (s *Server) loopError(w http.ResponseWriter, err error) {
	s.log.Warn().Err(err).Msg("control loop did not take the request")
	switch {
	case errors.Is(err, control.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "busy")
	case errors.Is(err, control.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		writeError(w, http.StatusGatewayTimeout, "timeout")
	}
}

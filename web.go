package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws: wss:; img-src 'self' data:")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("imposter v" + releaseVersion + "\n")); err != nil {
			log.Debug().Err(err).Str("remote", realIP(r)).Msg("failed to write version page")
		}
	}
}

// newRouter wires every route of the client onto one router.
func newRouter(cfg *Config, cm *ClientManager) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("recovered from panic")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, "/imposter"))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, cm))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	registerImposter(cfg, "/imposter", mux, cm)

	return mux
}

// newAPIClient builds the game server client, carrying any --api-header
// values on every request.
func newAPIClient(cfg *Config) *GameClient {
	api := NewGameClient(cfg.api, cfg.requestTimeout)
	for key, value := range cfg.apiHeaders {
		api.SetHeader(key, value)
	}

	return api
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log.Info().Str("version", releaseVersion).Str("api", cfg.api).Msg("starting imposter")

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	g, ctx := errgroup.WithContext(ctx)

	cm := newClientManager(ctx, newAPIClient(cfg), clockwork.NewRealClock(), cfg.idleTimeout)

	var handler http.Handler = newRouter(cfg, cm)
	if len(cfg.corsOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.corsOrigins,
			AllowedMethods: []string{http.MethodGet},
		}).Handler(handler)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           handler,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	g.Go(func() error {
		log.Info().Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		log.Info().Int("clients", cm.count()).Msg("shutting down")

		err := srv.Shutdown(shutdownCtx)
		<-cm.stopped

		return err
	})

	return g.Wait()
}

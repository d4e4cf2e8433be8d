/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

const robots = `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

// serveHomePage sends visitors of the bare root to the game page.
func serveHomePage(cfg *Config, target string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		http.Redirect(w, r, cfg.prefix+target, http.StatusFound)
	}
}

func serveHealthCheck(cfg *Config, cm *ClientManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Connected-Clients", strconv.Itoa(cm.count()))
		securityHeaders(cfg, w)

		if _, err := w.Write([]byte("Ok\n")); err != nil {
			log.Debug().Err(err).Str("remote", realIP(r)).Msg("failed to write health check")
		}
	}
}

func serveRobots(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(robots)))
		securityHeaders(cfg, w)

		if _, err := w.Write([]byte(robots)); err != nil {
			log.Debug().Err(err).Str("remote", realIP(r)).Msg("failed to write robots.txt")
		}
	}
}

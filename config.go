package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	api            string
	apiHeaders     map[string]string
	bind           string
	corsOrigins    []string
	idleTimeout    time.Duration
	port           int
	prefix         string
	profile        bool
	requestTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.requestTimeout < 0 {
		return fmt.Errorf("invalid request timeout (must not be negative): %s", c.requestTimeout)
	}
	if c.idleTimeout < 0 {
		return fmt.Errorf("invalid idle timeout (must not be negative): %s", c.idleTimeout)
	}

	u, err := url.Parse(c.api)
	if err != nil {
		return fmt.Errorf("invalid game server url %q: %w", c.api, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid game server url (must be an absolute http or https url): %q", c.api)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("IMPOSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "imposter",
		Short:         "Play \"find the imposter\" from your browser, synced against a remote game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.api, "api", "http://localhost:8000/api", "base url of the game server (env: IMPOSTER_API)")
	fs.StringToStringVar(&cfg.apiHeaders, "api-header", nil, "extra header sent with every game server request as key=value, may be repeated (env: IMPOSTER_API_HEADER)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: IMPOSTER_BIND)")
	fs.StringSliceVar(&cfg.corsOrigins, "cors-origin", nil, "additional origin allowed to use the client, may be repeated (env: IMPOSTER_CORS_ORIGIN)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", 30*time.Minute, "time before silent browser tabs are disconnected, 0 to disable (env: IMPOSTER_IDLE_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: IMPOSTER_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: IMPOSTER_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: IMPOSTER_PROFILE)")
	fs.DurationVar(&cfg.requestTimeout, "request-timeout", 30*time.Second, "timeout for each request to the game server, 0 for none (env: IMPOSTER_REQUEST_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: IMPOSTER_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: IMPOSTER_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: IMPOSTER_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: IMPOSTER_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("imposter v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

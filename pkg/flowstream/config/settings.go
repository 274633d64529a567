package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ConfigError reports an invalid setting.
type ConfigError struct {
	// Field is the dotted config key, e.g. "index.shards".
	Field string
	// Err describes what is wrong with the value.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ErrInvalidValue is wrapped by every ConfigError produced by Validate.
var ErrInvalidValue = errors.New("invalid value")

// Settings is the typed configuration of a flowstream process.
type Settings struct {
	Index     IndexSettings     `config:"index"`
	Log       LogSettings       `config:"log"`
	HTTP      HTTPSettings      `config:"http"`
	Metrics   bool              `config:"metrics"`
	Tracing   bool              `config:"tracing"`
	Influx    InfluxSettings    `config:"influx"`
	HostStats HostStatsSettings `config:"hoststats"`
	Snapshot  SnapshotSettings  `config:"snapshot"`
}

// IndexSettings configures the event index.
type IndexSettings struct {
	Shards         int   `config:"shards" validate:"gte=1,lte=4096"`
	ExpireInterval int64 `config:"expire_interval" validate:"gte=0"`
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level  string `config:"level" validate:"oneof=debug info warn error"`
	Format string `config:"format" validate:"oneof=auto text json"`
}

// HTTPSettings configures the HTTP ingress.
type HTTPSettings struct {
	Addr string `config:"addr" validate:"required,hostname_port"`
}

// InfluxSettings configures the InfluxDB sink.
type InfluxSettings struct {
	Enabled       bool          `config:"enabled"`
	URL           string        `config:"url" validate:"required_if=Enabled true"`
	Token         string        `config:"token"`
	Org           string        `config:"org" validate:"required_if=Enabled true"`
	Bucket        string        `config:"bucket" validate:"required_if=Enabled true"`
	BatchSize     uint          `config:"batch_size" validate:"gte=1"`
	FlushInterval time.Duration `config:"flush_interval" validate:"gte=0"`
}

// HostStatsSettings configures the host metrics source.
type HostStatsSettings struct {
	Enabled  bool   `config:"enabled"`
	Interval int64  `config:"interval" validate:"gte=1"`
	Host     string `config:"host"`
}

// SnapshotSettings configures where index snapshots are stored. An empty
// path keeps them in memory.
type SnapshotSettings struct {
	Path string `config:"path"`
}

// DefaultSettings returns the settings used for keys a config omits.
func DefaultSettings() Settings {
	return Settings{
		Index: IndexSettings{
			Shards:         16,
			ExpireInterval: 10,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "auto",
		},
		HTTP: HTTPSettings{
			Addr: "127.0.0.1:5556",
		},
		Influx: InfluxSettings{
			BatchSize:     500,
			FlushInterval: time.Second,
		},
		HostStats: HostStatsSettings{
			Interval: 10,
		},
	}
}

// LoadSettings reads Settings from cfg on top of DefaultSettings and
// validates the result.
func LoadSettings(cfg Config) (Settings, error) {
	d := DefaultSettings()
	s := Settings{
		Index: IndexSettings{
			Shards:         cfg.Int("index.shards", d.Index.Shards),
			ExpireInterval: cfg.Int64("index.expire_interval", d.Index.ExpireInterval),
		},
		Log: LogSettings{
			Level:  strings.ToLower(cfg.String("log.level", d.Log.Level)),
			Format: strings.ToLower(cfg.String("log.format", d.Log.Format)),
		},
		HTTP: HTTPSettings{
			Addr: cfg.String("http.addr", d.HTTP.Addr),
		},
		Metrics: cfg.Bool("metrics.enabled", d.Metrics),
		Tracing: cfg.Bool("tracing.enabled", d.Tracing),
		Influx: InfluxSettings{
			Enabled:       cfg.Bool("influx.enabled", d.Influx.Enabled),
			URL:           cfg.String("influx.url", d.Influx.URL),
			Token:         cfg.String("influx.token", d.Influx.Token),
			Org:           cfg.String("influx.org", d.Influx.Org),
			Bucket:        cfg.String("influx.bucket", d.Influx.Bucket),
			BatchSize:     uint(max(cfg.Int("influx.batch_size", int(d.Influx.BatchSize)), 0)),
			FlushInterval: cfg.Duration("influx.flush_interval", d.Influx.FlushInterval),
		},
		HostStats: HostStatsSettings{
			Enabled:  cfg.Bool("hoststats.enabled", d.HostStats.Enabled),
			Interval: cfg.Int64("hoststats.interval", d.HostStats.Interval),
			Host:     cfg.String("hoststats.host", d.HostStats.Host),
		},
		Snapshot: SnapshotSettings{
			Path: cfg.String("snapshot.path", d.Snapshot.Path),
		},
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("config")
		})
	})
	return validate
}

// Validate checks every setting. The returned error joins one ConfigError
// per invalid field.
func (s Settings) Validate() error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		errs = append(errs, &ConfigError{
			Field: field,
			Err:   fmt.Errorf("%w: %v fails %q", ErrInvalidValue, fe.Value(), fe.ActualTag()),
		})
	}
	return errors.Join(errs...)
}

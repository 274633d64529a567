/*
Package config loads flowstream process settings.

# Overview

Config wraps the map[string]any decoded from a YAML, JSON or TOML file and
provides typed accessors that return a default when a key is missing or
holds a value of the wrong type. Keys are dotted paths into nested maps:

	cfg, err := config.FromFile("flowstream.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	shards := cfg.Int("index.shards", 16)
	addr := cfg.String("http.addr", ":5556")

Settings is the typed view used by the flowstream command. LoadSettings
fills it from a Config on top of DefaultSettings and validates it:

	settings, err := config.LoadSettings(cfg)
	if err != nil {
	    var cerr *config.ConfigError
	    if errors.As(err, &cerr) {
	        log.Fatalf("bad %s: %v", cerr.Field, cerr.Err)
	    }
	}

# Type Coercion

Decoders disagree on number types (YAML yields int, TOML int64, JSON
float64). Int, Int64 and Float accept all three; a float with a
fractional part is not accepted as an integer. Duration accepts a
time.ParseDuration string or a number of seconds.

# Thread Safety

Config is safe for concurrent reads. The underlying map is never modified
after creation.
*/
package config

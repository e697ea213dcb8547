package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// App is the configuration for the API server and batch tooling.
type App struct {
	// Listen is the address the HTTP server binds, e.g. ":8080".
	Listen string `json:"listen"`

	// TrustedProxies is passed through to the HTTP engine; empty means no
	// proxy headers are trusted.
	TrustedProxies []string `json:"trusted_proxies"`

	// MaxUploadMB caps the total size of one multipart upload.
	MaxUploadMB int64 `json:"max_upload_mb"`

	Store   Store   `json:"store"`
	Metrics Metrics `json:"metrics"`

	// Ingest holds file-reading options (comma, has_header, encoding, ...)
	// consumed by the ingest package.
	Ingest Options `json:"ingest"`
}

// Store selects the snapshot persistence backend. An empty Kind disables
// persistence entirely; uploads are then processed in memory only.
type Store struct {
	// Kind: "sqlite" | "postgres" | "mssql" | "".
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Metrics selects the metrics backend for pipeline counters.
type Metrics struct {
	// Backend: "datadog" | "none" | "".
	Backend string `json:"backend"`
	// FlushSeconds is the submit interval for buffering backends.
	FlushSeconds int `json:"flush_seconds"`
	// Tags are extra backend tags in "key:value" form.
	Tags []string `json:"tags"`
}

// Default returns the config used when no file is given: local server, no
// persistence, no metrics, 50 MB upload cap.
func Default() App {
	return App{
		Listen:      ":8080",
		MaxUploadMB: 50,
		Metrics:     Metrics{FlushSeconds: 60},
	}
}

// LoadApp reads a JSON config file and fills unset fields with defaults.
// Unknown keys are an error so typos do not silently disable features.
func LoadApp(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, fmt.Errorf("read config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	a := App{}
	if err := dec.Decode(&a); err != nil {
		return App{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	a.fillDefaults()
	return a, nil
}

func (a *App) fillDefaults() {
	def := Default()
	if strings.TrimSpace(a.Listen) == "" {
		a.Listen = def.Listen
	}
	if a.MaxUploadMB <= 0 {
		a.MaxUploadMB = def.MaxUploadMB
	}
	if a.Metrics.FlushSeconds <= 0 {
		a.Metrics.FlushSeconds = def.Metrics.FlushSeconds
	}
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found while validating a config. Path points at the
// offending JSON field in dotted form ("store.kind").
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateApp checks an App for problems. Errors make the config unusable;
// warnings flag suspicious values the server will tolerate.
func ValidateApp(a App) []Issue {
	var issues []Issue

	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(a.Listen) == "" {
		errf("listen", "listen address is empty")
	}
	if a.MaxUploadMB <= 0 {
		errf("max_upload_mb", "must be positive, got %d", a.MaxUploadMB)
	}

	switch a.Store.Kind {
	case "":
		if a.Store.DSN != "" {
			warnf("store.kind", "dsn set but kind is empty; persistence is disabled")
		}
	case "sqlite", "postgres", "mssql":
		if strings.TrimSpace(a.Store.DSN) == "" {
			errf("store.dsn", "kind %q requires a dsn", a.Store.Kind)
		}
	default:
		errf("store.kind", "unknown kind %q (sqlite|postgres|mssql)", a.Store.Kind)
	}

	switch a.Metrics.Backend {
	case "", "none", "datadog", "dd":
	default:
		errf("metrics.backend", "unknown backend %q (none|datadog)", a.Metrics.Backend)
	}
	if a.Metrics.FlushSeconds <= 0 {
		errf("metrics.flush_seconds", "must be positive, got %d", a.Metrics.FlushSeconds)
	}

	if comma := a.Ingest.String("comma", ","); len([]rune(comma)) > 1 {
		warnf("ingest.comma", "%q has more than one character; only the first is used", comma)
	}
	if enc := a.Ingest.String("encoding", ""); enc != "" {
		switch strings.ToLower(enc) {
		case "utf-8", "utf8", "windows-1252", "cp1252", "latin-1", "latin1", "iso-8859-1", "windows-1250", "cp1250":
		default:
			warnf("ingest.encoding", "unknown encoding %q; input will be read as UTF-8", enc)
		}
	}

	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

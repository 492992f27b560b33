package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger gathers the process identity and the resources a binary is
// wired to, then writes them as one structured event at the end of startup.
// Secrets are never recorded, only where they were loaded from.
type StartupLogger struct {
	name         string
	version      string
	initDuration time.Duration

	s3Buckets  map[string]string
	tables     map[string]string
	ssmParams  map[string]string
	eventBuses map[string]string
	models     map[string]string
	features   map[string]bool
	config     map[string]string
}

// NewStartupLogger creates a StartupLogger for the named binary
// (e.g. "transcription-lambda").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:       name,
		s3Buckets:  make(map[string]string),
		tables:     make(map[string]string),
		ssmParams:  make(map[string]string),
		eventBuses: make(map[string]string),
		models:     make(map[string]string),
		features:   make(map[string]bool),
		config:     make(map[string]string),
	}
}

// Version sets the build version stamped in with -ldflags.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// S3Bucket registers an S3 bucket the binary reads from.
func (s *StartupLogger) S3Bucket(label, name string) *StartupLogger {
	s.s3Buckets[label] = name
	return s
}

// Table registers the record store backing meeting rows. label names the
// backend ("dynamodb", "postgres", "dataapi"); name is the table or database.
func (s *StartupLogger) Table(label, name string) *StartupLogger {
	s.tables[label] = name
	return s
}

// SSMParam registers an SSM parameter path. Only the path is logged.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	s.ssmParams[label] = path
	return s
}

// EventBus registers an EventBridge bus that receives audit events.
func (s *StartupLogger) EventBus(label, name string) *StartupLogger {
	s.eventBuses[label] = name
	return s
}

// Model registers a provider model name (e.g. "transcription" -> "gemini-2.0-flash").
func (s *StartupLogger) Model(stage, name string) *StartupLogger {
	s.models[stage] = name
	return s
}

// Feature registers a boolean feature flag (e.g. "bearerAuth", "geminiKey").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long startup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log writes the collected state to the global logger at INFO.
func (s *StartupLogger) Log() {
	s.LogTo(log.Logger)
}

// LogTo writes the collected state to l at INFO.
func (s *StartupLogger) LogTo(l zerolog.Logger) {
	evt := l.Info()

	process := zerolog.Dict().
		Str("name", s.name).
		Str("functionName", os.Getenv("AWS_LAMBDA_FUNCTION_NAME")).
		Str("functionVersion", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
		Str("region", os.Getenv("AWS_REGION")).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.version != "" {
		process = process.Str("version", s.version)
	}
	evt = evt.Dict("process", process)

	// Only non-empty maps are attached.
	resources := zerolog.Dict()
	hasResources := false

	if len(s.s3Buckets) > 0 {
		resources = resources.Dict("s3Buckets", dictFromMap(s.s3Buckets))
		hasResources = true
	}
	if len(s.tables) > 0 {
		resources = resources.Dict("recordStore", dictFromMap(s.tables))
		hasResources = true
	}
	if len(s.ssmParams) > 0 {
		resources = resources.Dict("ssmParams", dictFromMap(s.ssmParams))
		hasResources = true
	}
	if len(s.eventBuses) > 0 {
		resources = resources.Dict("eventBuses", dictFromMap(s.eventBuses))
		hasResources = true
	}

	if hasResources {
		evt = evt.Dict("resources", resources)
	}

	if len(s.models) > 0 {
		evt = evt.Dict("models", dictFromMap(s.models))
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}

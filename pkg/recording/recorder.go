package recording

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/logging"
	"github.com/getmockd/mockrelay/pkg/mapping"
	"github.com/getmockd/mockrelay/pkg/router"
)

// MappingWriter persists a serialized mapping under a file name.
type MappingWriter interface {
	WriteMappingFile(name string, data []byte) error
}

// MappingWriterFunc adapts a function to MappingWriter.
type MappingWriterFunc func(name string, data []byte) error

// WriteMappingFile calls f.
func (f MappingWriterFunc) WriteMappingFile(name string, data []byte) error {
	return f(name, data)
}

// Options configures a Recorder.
type Options struct {
	// Mappings receives mappings when SaveMapping is on.
	Mappings mapping.ControlPlane

	// Writer receives mappings when SaveMappingToFile is on.
	Writer MappingWriter

	// Logger for recording diagnostics (nil = no logging).
	Logger *slog.Logger
}

// Recorder synthesizes mappings from proxied exchanges.
type Recorder struct {
	mappings mapping.ControlPlane
	writer   MappingWriter
	logger   *slog.Logger
}

// Outcome describes what Record did with an exchange.
type Outcome struct {
	// Mapping is the synthesized mapping; nil when the exchange was skipped.
	Mapping *mapping.Mapping

	// Registered is true when Mapping was added to the in-memory set.
	Registered bool

	// FileName is the name handed to the writer, if any.
	FileName string

	// Written is true when the writer accepted the file.
	Written bool

	// Skipped holds the reason the exchange was not recorded.
	Skipped error

	Warnings []SensitiveDataWarning
}

// NewRecorder creates a Recorder.
func NewRecorder(opts Options) *Recorder {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Recorder{
		mappings: opts.Mappings,
		writer:   opts.Writer,
		logger:   logger,
	}
}

// Record turns rec into a mapping according to cfg. snap is the mapping set
// used to detect control-plane mappings that answer the request directly;
// nil means the current set of the configured store. A control-plane proxy
// mapping does not block recording: the exchange went through it.
//
// Recording is best effort: a skipped exchange yields an Outcome with
// Skipped set and a nil error. Registration and persistence failures are
// returned but never affect the response already sent. A panic while
// recording is recovered and reported as an error.
func (r *Recorder) Record(rec *Recording, snap *mapping.Snapshot, cfg *config.ProxyConfig) (out *Outcome, err error) {
	out = &Outcome{}
	if !cfg.RecordingEnabled() {
		return out, nil
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("recording panicked", "panic", p)
			err = fmt.Errorf("recording panicked: %v", p)
		}
	}()

	if rec == nil || rec.Outbound == nil || rec.Response == nil {
		out.Skipped = ErrNoExchange
		return out, nil
	}
	if !cfg.ShouldSaveStatus(rec.Response.StatusCode) {
		out.Skipped = ErrStatusNotRecorded
		return out, nil
	}
	if !cfg.Filter.ShouldRecord(rec.Outbound.Path) {
		out.Skipped = ErrPathNotRecorded
		return out, nil
	}

	if snap == nil && r.mappings != nil {
		snap = mapping.NewSnapshot(r.mappings.ListMappings()...)
	}
	probe := rec.Inbound
	if probe == nil {
		probe = rec.Outbound
	}
	if cp := router.ControlPlaneMatch(probe, snap); cp != nil && cp.Kind() != mapping.ActionProxy {
		r.logger.Debug("recording skipped", "reason", ErrShadowsControlPlane, "mappingId", cp.ID,
			"method", rec.Outbound.Method, "path", rec.Outbound.Path)
		out.Skipped = ErrShadowsControlPlane
		return out, nil
	}

	m := ToMapping(rec, cfg)
	out.Mapping = m
	out.Warnings = CheckSensitiveData(m)
	for _, w := range out.Warnings {
		r.logger.Warn("recorded mapping contains sensitive data", "mappingId", m.ID, "type", w.Type, "field", w.Field)
	}

	var errs []error

	if cfg.SaveMapping {
		if r.mappings == nil {
			errs = append(errs, errors.New("saveMapping is enabled but no mapping store is configured"))
		} else if regErr := r.mappings.RegisterMapping(m); regErr != nil {
			errs = append(errs, fmt.Errorf("failed to register recorded mapping: %w", regErr))
		} else {
			out.Registered = true
			r.logger.Info("recorded mapping registered", "mappingId", m.ID, "method", m.Request.Method, "path", m.Request.Path)
		}
	}

	if cfg.SaveMappingToFile {
		name, wErr := r.persist(m, cfg)
		out.FileName = name
		if wErr != nil {
			errs = append(errs, wErr)
		} else {
			out.Written = true
		}
	}

	if err := errors.Join(errs...); err != nil {
		r.logger.Error("recording failed", "mappingId", m.ID, "error", err)
		return out, err
	}
	return out, nil
}

func (r *Recorder) persist(m *mapping.Mapping, cfg *config.ProxyConfig) (string, error) {
	format := mapping.ParseFormat(cfg.FileFormat)
	name := FileName(m, cfg, format)
	if r.writer == nil {
		return name, &PersistenceError{Name: name, Err: errors.New("no mapping writer configured")}
	}

	data, err := mapping.Marshal(m, format)
	if err != nil {
		return name, &PersistenceError{Name: name, Err: err}
	}
	if err := r.writer.WriteMappingFile(name, data); err != nil {
		return name, &PersistenceError{Name: name, Err: err}
	}

	r.logger.Info("recorded mapping saved", "mappingId", m.ID, "file", name)
	return name, nil
}

package core

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"

	"github.com/JonMunkholm/tabjson/internal/config"
	"github.com/JonMunkholm/tabjson/internal/logging"
	"github.com/JonMunkholm/tabjson/internal/projection"
	"github.com/JonMunkholm/tabjson/internal/sink"
	"github.com/JonMunkholm/tabjson/internal/table"
)

// JSONContentType is the content type of every converted document.
const JSONContentType = "application/json; charset=utf-8"

var (
	// ErrNoFile is returned when a request carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrEmptyFile is returned for a zero-byte upload.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge is returned when the upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidRequest marks a malformed request, such as a body that is
	// not a multipart form or a flag that is not a boolean.
	ErrInvalidRequest = errors.New("invalid request")
)

// Service converts uploaded tables to JSON and optionally stores the result.
// A Service is safe for concurrent use; requests share nothing but the
// limiter and the read-only load options.
type Service struct {
	sink    sink.Sink
	limiter *Limiter

	loadOpts      table.Options
	defaultPolicy projection.Policy
	maxFileSize   int64
	timeout       time.Duration
	sinkTimeout   time.Duration
}

// NewService creates a Service from configuration. charset is the fallback
// decoder for delimited files, resolved once at startup with
// table.LookupCharset; nil disables the fallback. snk may be nil when only
// inline conversion is used.
func NewService(snk sink.Sink, cfg *config.Config, charset encoding.Encoding) (*Service, error) {
	policy, err := projection.ParsePolicy(cfg.Convert.DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}

	loadOpts := table.DefaultOptions()
	loadOpts.Charset = charset
	if cfg.Convert.CSVDelimiter != "" {
		r, size := utf8.DecodeRuneInString(cfg.Convert.CSVDelimiter)
		if r == utf8.RuneError || size != len(cfg.Convert.CSVDelimiter) {
			return nil, fmt.Errorf("csv delimiter %q must be a single character", cfg.Convert.CSVDelimiter)
		}
		loadOpts.Delimiter = r
	}

	return &Service{
		sink:          snk,
		limiter:       NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		loadOpts:      loadOpts,
		defaultPolicy: policy,
		maxFileSize:   cfg.Upload.MaxFileSize,
		timeout:       cfg.Upload.Timeout,
		sinkTimeout:   cfg.Sink.Timeout,
	}, nil
}

// ConvertRequest is a single conversion.
type ConvertRequest struct {
	// ID names the conversion in logs and results; empty generates a UUID.
	ID string

	// FileName decides the format by its extension.
	FileName string
	Data     []byte

	// Policy names the projection policy; empty selects the configured default.
	Policy string

	// HasHeader treats the first row as column names.
	HasHeader bool

	// Indent pretty-prints the JSON document.
	Indent bool
}

// ConvertResult is the outcome of a successful conversion.
type ConvertResult struct {
	ID       string
	JSON     []byte
	Rows     int
	Columns  int
	Kind     table.Kind
	Policy   projection.Policy
	Duration time.Duration
}

// StoreResult is the outcome of a conversion uploaded to a sink.
type StoreResult struct {
	*ConvertResult
	Target sink.Target
	Bytes  int
}

// Confirmation is the human-readable message returned to storage clients.
func (r *StoreResult) Confirmation() string {
	return fmt.Sprintf("stored %d rows as %q in container %q (%d bytes)",
		r.Rows, r.Target.Object, r.Target.Container, r.Bytes)
}

// Convert loads the uploaded table and projects it to JSON.
//
// The format is derived from the file name before any bytes are parsed, so
// an unsupported extension fails fast with table.ErrUnsupportedFormat.
func (s *Service) Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error) {
	return s.convert(ctx, conversionID(req), req)
}

// ConvertAndStore converts the upload and writes the JSON to target.
// The target is validated before the file is parsed.
func (s *Service) ConvertAndStore(ctx context.Context, req ConvertRequest, target sink.Target) (*StoreResult, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if s.sink == nil {
		return nil, &sink.Error{Op: "put", Target: target, Err: errors.New("no sink configured")}
	}

	id := conversionID(req)
	res, err := s.convert(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", target, err)
	}

	logger := logging.WithFields(ctx, "conversion_id", id, "container", target.Container, "object", target.Object)

	putCtx, cancel := withTimeout(ctx, s.sinkTimeout)
	defer cancel()

	start := time.Now()
	if err := s.sink.Put(putCtx, target, res.JSON, JSONContentType); err != nil {
		// Every storage failure must carry ErrSinkFailure and the target.
		var sinkErr *sink.Error
		if !errors.As(err, &sinkErr) {
			err = &sink.Error{Op: "put", Target: target, Err: err}
		}
		logger.Warn("store failed", "error", err)
		return nil, err
	}
	logger.Info("document stored", "bytes", len(res.JSON), "duration", time.Since(start))

	return &StoreResult{ConvertResult: res, Target: target, Bytes: len(res.JSON)}, nil
}

func (s *Service) convert(ctx context.Context, id string, req ConvertRequest) (*ConvertResult, error) {
	kind, err := table.KindFromFilename(req.FileName)
	if err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyFile, req.FileName)
	}
	if s.maxFileSize > 0 && int64(len(req.Data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %q is %d bytes, limit %d", ErrFileTooLarge, req.FileName, len(req.Data), s.maxFileSize)
	}

	policy := s.defaultPolicy
	if req.Policy != "" {
		if policy, err = projection.ParsePolicy(req.Policy); err != nil {
			return nil, err
		}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	logger := logging.WithFields(ctx,
		"conversion_id", id,
		"file", req.FileName,
		"kind", kind.String(),
		"policy", policy.String(),
	)
	if ip := ClientIPFromContext(ctx); ip != "" {
		logger = logger.With("client_ip", ip)
	}

	start := time.Now()

	opts := s.loadOpts
	opts.HasHeader = req.HasHeader
	opts.FileName = req.FileName

	tbl, err := table.Load(req.Data, kind, opts)
	if err != nil {
		logger.Warn("load failed", "error", err)
		return nil, err
	}
	// Parsing holds no context; a request that ended meanwhile stops here.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := projection.ProjectWith(tbl, projection.Options{Policy: policy, Indent: req.Indent})
	if err != nil {
		logger.Error("projection failed", "error", err)
		return nil, err
	}

	res := &ConvertResult{
		ID:       id,
		JSON:     doc,
		Rows:     tbl.NumRows(),
		Columns:  tbl.NumColumns(),
		Kind:     kind,
		Policy:   policy,
		Duration: time.Since(start),
	}
	logger.Info("conversion completed",
		"rows", res.Rows,
		"columns", res.Columns,
		"bytes", len(doc),
		"duration", res.Duration,
	)
	return res, nil
}

func conversionID(req ConvertRequest) string {
	if req.ID != "" {
		return req.ID
	}
	return uuid.New().String()
}

// withTimeout bounds ctx by d; a non-positive d leaves it unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// MaxFileSize returns the upload size limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// LimiterStatus returns the current conversion slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForConversions blocks until running conversions finish or ctx ends.
func (s *Service) WaitForConversions(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

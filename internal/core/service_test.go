package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tabjson/internal/config"
	"github.com/JonMunkholm/tabjson/internal/projection"
	"github.com/JonMunkholm/tabjson/internal/sink"
	"github.com/JonMunkholm/tabjson/internal/table"
)

// recordingSink captures Put calls.
type recordingSink struct {
	mu    sync.Mutex
	calls []putCall
	err   error
}

type putCall struct {
	target      sink.Target
	data        []byte
	contentType string
}

func (s *recordingSink) Put(_ context.Context, target sink.Target, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, putCall{target: target, data: append([]byte(nil), data...), contentType: contentType})
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{
		Upload:  config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second, Timeout: time.Minute},
		Convert: config.ConvertConfig{DefaultPolicy: "rows"},
		Sink:    config.SinkConfig{Provider: "file", Timeout: time.Second},
	}
}

func newTestService(t *testing.T, snk sink.Sink) *Service {
	t.Helper()
	svc, err := NewService(snk, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestService_ConvertDelimited(t *testing.T) {
	svc := newTestService(t, nil)

	tests := []struct {
		policy string
		want   string
	}{
		{"", `[{"name":"Ada","age":"36"},{"name":"Lin","age":""}]`},
		{"rows", `[{"name":"Ada","age":"36"},{"name":"Lin","age":""}]`},
		{"rows-sparse", `[{"name":"Ada","age":"36"},{"name":"Lin"}]`},
		{"columns", `{"name":["Ada","Lin"],"age":["36",""]}`},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			res, err := svc.Convert(context.Background(), ConvertRequest{
				FileName:  "people.CSV",
				Data:      []byte("name,age\nAda,36\nLin,\n"),
				Policy:    tt.policy,
				HasHeader: true,
			})
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			if string(res.JSON) != tt.want {
				t.Errorf("JSON = %s, want %s", res.JSON, tt.want)
			}
			if res.Rows != 2 || res.Columns != 2 {
				t.Errorf("Rows, Columns = %d, %d, want 2, 2", res.Rows, res.Columns)
			}
			if res.Kind != table.KindDelimited {
				t.Errorf("Kind = %v, want delimited", res.Kind)
			}
			if res.ID == "" {
				t.Error("ID is empty")
			}
		})
	}
}

func TestService_ConvertKeepsCallerID(t *testing.T) {
	svc := newTestService(t, nil)

	res, err := svc.Convert(context.Background(), ConvertRequest{ID: "abc-123", FileName: "a.csv", Data: []byte("x\n1\n"), HasHeader: true})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.ID != "abc-123" {
		t.Errorf("ID = %q, want abc-123", res.ID)
	}
}

func TestService_ConvertWithoutHeader(t *testing.T) {
	svc := newTestService(t, nil)

	res, err := svc.Convert(context.Background(), ConvertRequest{FileName: "a.csv", Data: []byte("Ada,36\n")})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	want := `[{"Column1":"Ada","Column2":"36"}]`
	if string(res.JSON) != want {
		t.Errorf("JSON = %s, want %s", res.JSON, want)
	}
}

func TestService_ConvertSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]any{"name", "score"})
	_ = f.SetSheetRow(sheet, "A2", &[]any{"Ada", 9.5})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	svc := newTestService(t, nil)
	res, err := svc.Convert(context.Background(), ConvertRequest{FileName: "scores.xlsx", Data: buf.Bytes(), HasHeader: true, Policy: "columns"})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	want := `{"name":["Ada"],"score":["9.5"]}`
	if string(res.JSON) != want {
		t.Errorf("JSON = %s, want %s", res.JSON, want)
	}
	if res.Kind != table.KindSpreadsheet {
		t.Errorf("Kind = %v, want spreadsheet", res.Kind)
	}
}

func TestService_ConvertErrors(t *testing.T) {
	svc := newTestService(t, nil)

	tests := []struct {
		name     string
		req      ConvertRequest
		wantErr  error
		wantCode string
	}{
		{
			name:     "unsupported extension is rejected before parsing",
			req:      ConvertRequest{FileName: "data.txt", Data: []byte("\x00\x01 not parsed")},
			wantErr:  table.ErrUnsupportedFormat,
			wantCode: "FMT001",
		},
		{
			name:     "no extension",
			req:      ConvertRequest{FileName: "README", Data: []byte("a")},
			wantErr:  table.ErrUnsupportedFormat,
			wantCode: "FMT001",
		},
		{
			name:     "corrupt workbook",
			req:      ConvertRequest{FileName: "broken.xlsx", Data: []byte("PK\x03\x04 truncated")},
			wantErr:  table.ErrParseFailure,
			wantCode: "PARSE001",
		},
		{
			name:     "empty file",
			req:      ConvertRequest{FileName: "a.csv"},
			wantErr:  ErrEmptyFile,
			wantCode: "FILE005",
		},
		{
			name:     "unknown policy",
			req:      ConvertRequest{FileName: "a.csv", Data: []byte("a\n1\n"), Policy: "tree"},
			wantErr:  projection.ErrUnknownPolicy,
			wantCode: "FMT001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Convert(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Convert() error = %v, want %v", err, tt.wantErr)
			}
			if got := MapError(err).Code; got != tt.wantCode {
				t.Errorf("MapError code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestService_ConvertErrorNamesFile(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Convert(context.Background(), ConvertRequest{FileName: "ledger.xlsx", Data: []byte("plain text")})
	if err == nil {
		t.Fatal("Convert() expected error")
	}
	if !strings.Contains(err.Error(), "ledger.xlsx") || !strings.Contains(err.Error(), "spreadsheet") {
		t.Errorf("error should name file and kind: %v", err)
	}
}

func TestService_ConvertTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 8
	svc, err := NewService(nil, cfg, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	_, err = svc.Convert(context.Background(), ConvertRequest{FileName: "a.csv", Data: []byte("a,b,c\n1,2,3\n")})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Convert() error = %v, want ErrFileTooLarge", err)
	}
}

func TestService_ConvertBusy(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxConcurrent = 1
	cfg.Upload.MaxWaitTime = 20 * time.Millisecond
	svc, err := NewService(nil, cfg, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	if err := svc.limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer svc.limiter.Release()

	_, err = svc.Convert(context.Background(), ConvertRequest{FileName: "a.csv", Data: []byte("a\n1\n")})
	if !errors.Is(err, ErrTooManyUploads) {
		t.Fatalf("Convert() error = %v, want ErrTooManyUploads", err)
	}
	if got := svc.LimiterStatus().Active; got != 1 {
		t.Errorf("Active = %d, want 1", got)
	}
}

func TestService_ConfiguredDelimiter(t *testing.T) {
	cfg := testConfig()
	cfg.Convert.CSVDelimiter = "|"
	svc, err := NewService(nil, cfg, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	res, err := svc.Convert(context.Background(), ConvertRequest{FileName: "a.csv", Data: []byte("a|b\n1,5|2\n"), HasHeader: true})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	want := `[{"a":"1,5","b":"2"}]`
	if string(res.JSON) != want {
		t.Errorf("JSON = %s, want %s", res.JSON, want)
	}
}

func TestNewService_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Convert.DefaultPolicy = "tree"
	if _, err := NewService(nil, cfg, nil); err == nil {
		t.Error("NewService() expected error for unknown default policy")
	}

	cfg = testConfig()
	cfg.Convert.CSVDelimiter = ";;"
	if _, err := NewService(nil, cfg, nil); err == nil {
		t.Error("NewService() expected error for multi-character delimiter")
	}
}

func TestService_ConvertAndStore(t *testing.T) {
	rec := &recordingSink{}
	svc := newTestService(t, rec)
	target := sink.Target{Endpoint: "https://acct.blob.core.windows.net", Container: "exports", Object: "people.json"}

	res, err := svc.ConvertAndStore(context.Background(), ConvertRequest{
		FileName:  "people.csv",
		Data:      []byte("name,age\nAda,36\n"),
		HasHeader: true,
	}, target)
	if err != nil {
		t.Fatalf("ConvertAndStore() error = %v", err)
	}

	if len(rec.calls) != 1 {
		t.Fatalf("sink called %d times, want 1", len(rec.calls))
	}
	call := rec.calls[0]
	if call.target != target {
		t.Errorf("target = %+v, want %+v", call.target, target)
	}
	if string(call.data) != `[{"name":"Ada","age":"36"}]` {
		t.Errorf("stored data = %s", call.data)
	}
	if call.contentType != JSONContentType {
		t.Errorf("content type = %q, want %q", call.contentType, JSONContentType)
	}

	msg := res.Confirmation()
	if !strings.Contains(msg, `"people.json"`) || !strings.Contains(msg, `"exports"`) {
		t.Errorf("Confirmation() = %q, want object and container named", msg)
	}
}

func TestService_ConvertAndStoreIncompleteTarget(t *testing.T) {
	rec := &recordingSink{}
	svc := newTestService(t, rec)

	_, err := svc.ConvertAndStore(context.Background(), ConvertRequest{FileName: "a.csv", Data: []byte("a\n1\n")},
		sink.Target{Endpoint: "https://acct.blob.core.windows.net", Object: "a.json"})
	if !errors.Is(err, sink.ErrIncompleteTarget) {
		t.Fatalf("error = %v, want ErrIncompleteTarget", err)
	}
	if !errors.Is(err, sink.ErrSinkFailure) {
		t.Error("incomplete target should also be a sink failure")
	}
	for _, want := range []string{`endpoint="https://acct.blob.core.windows.net"`, `container=""`, `object="a.json"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %s", err, want)
		}
	}
	if len(rec.calls) != 0 {
		t.Errorf("sink called %d times, want 0", len(rec.calls))
	}
}

func TestService_ConvertAndStoreSinkFailure(t *testing.T) {
	rec := &recordingSink{err: &sink.Error{Provider: "azure", Op: "upload", Err: errors.New("403")}}
	svc := newTestService(t, rec)

	_, err := svc.ConvertAndStore(context.Background(), ConvertRequest{FileName: "a.csv", Data: []byte("a\n1\n")},
		sink.Target{Endpoint: "e", Container: "c", Object: "o"})
	if !errors.Is(err, sink.ErrSinkFailure) {
		t.Fatalf("error = %v, want ErrSinkFailure", err)
	}
	if got := MapError(err).Code; got != "SINK001" {
		t.Errorf("MapError code = %q, want SINK001", got)
	}
}

func TestService_ConvertAndStorePlainSinkError(t *testing.T) {
	rec := &recordingSink{err: errors.New("connection refused")}
	svc := newTestService(t, rec)

	target := sink.Target{Endpoint: "http://e", Container: "box", Object: "o.json"}
	_, err := svc.ConvertAndStore(context.Background(), ConvertRequest{FileName: "a.csv", Data: []byte("a\n1\n")}, target)
	if !errors.Is(err, sink.ErrSinkFailure) {
		t.Fatalf("error = %v, want ErrSinkFailure", err)
	}
	var sinkErr *sink.Error
	if !errors.As(err, &sinkErr) || sinkErr.Target != target {
		t.Fatalf("error = %v, want *sink.Error for %v", err, target)
	}
	if got := MapError(err).Code; got != "SINK001" {
		t.Errorf("MapError code = %q, want SINK001", got)
	}
	for _, want := range []string{"connection refused", "http://e", "box", "o.json"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestService_ConvertAndStoreConvertErrorNamesTarget(t *testing.T) {
	rec := &recordingSink{}
	svc := newTestService(t, rec)

	target := sink.Target{Endpoint: "http://e", Container: "box", Object: "o.json"}
	_, err := svc.ConvertAndStore(context.Background(), ConvertRequest{FileName: "a.xlsx", Data: []byte("garbage")}, target)
	if !errors.Is(err, table.ErrParseFailure) {
		t.Fatalf("error = %v, want ErrParseFailure", err)
	}
	if got := MapError(err).Code; got != "PARSE001" {
		t.Errorf("MapError code = %q, want PARSE001", got)
	}
	for _, want := range []string{"a.xlsx", "http://e", "box", "o.json"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
	if len(rec.calls) != 0 {
		t.Errorf("sink called %d times, want 0", len(rec.calls))
	}
}

func TestService_ConvertAndStoreWithoutSink(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.ConvertAndStore(context.Background(), ConvertRequest{FileName: "a.csv", Data: []byte("a\n1\n")},
		sink.Target{Endpoint: "e", Container: "c", Object: "o"})
	if !errors.Is(err, sink.ErrSinkFailure) {
		t.Fatalf("error = %v, want ErrSinkFailure", err)
	}
}

func TestService_ConvertAndStoreFileSink(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, sink.NewFile(root))

	res, err := svc.ConvertAndStore(context.Background(), ConvertRequest{FileName: "a.csv", Data: []byte("a\n1\n"), HasHeader: true},
		sink.Target{Endpoint: "local", Container: "out", Object: "a.json"})
	if err != nil {
		t.Fatalf("ConvertAndStore() error = %v", err)
	}
	if res.Bytes != len(`[{"a":"1"}]`) {
		t.Errorf("Bytes = %d", res.Bytes)
	}
}

func TestService_WaitForConversions(t *testing.T) {
	svc := newTestService(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.WaitForConversions(ctx); err != nil {
		t.Errorf("WaitForConversions() on idle service = %v", err)
	}
}

func TestContextClientIP(t *testing.T) {
	ctx := ContextWithClientIP(context.Background(), "203.0.113.7")
	if got := ClientIPFromContext(ctx); got != "203.0.113.7" {
		t.Errorf("ClientIPFromContext() = %q", got)
	}
	if got := ClientIPFromContext(context.Background()); got != "" {
		t.Errorf("ClientIPFromContext(empty) = %q, want empty", got)
	}
}

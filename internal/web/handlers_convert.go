package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tabjson/internal/core"
	"github.com/JonMunkholm/tabjson/internal/sink"
)

const (
	conversionIDHeader = "X-Conversion-ID"

	// multipartMemory is the part of a form kept in memory before spilling
	// to temporary files.
	multipartMemory = 10 << 20
)

// handleConvert converts the uploaded file and returns the JSON document.
//
// Form fields:
//
//	file    the .csv, .xls or .xlsx upload (required)
//	policy  rows, rows-sparse or columns (default from config)
//	header  whether the first row holds column names (default true)
//	indent  pretty-print the document (default false)
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseConvertForm(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.Convert(withRequestMetadata(r.Context(), r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", core.JSONContentType)
	w.Header().Set("X-Row-Count", strconv.Itoa(result.Rows))
	w.Header().Set("X-Policy", result.Policy.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.JSON)
}

// handleConvertBlob converts the uploaded file and stores the document in
// the configured sink. In addition to the handleConvert fields it reads:
//
//	endpoint   storage service URL
//	container  container or bucket name
//	blob       object name
//
// The response is a plain-text confirmation.
func (s *Server) handleConvertBlob(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseConvertForm(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	target := sink.Target{
		Endpoint:  r.FormValue("endpoint"),
		Container: r.FormValue("container"),
		Object:    r.FormValue("blob"),
	}

	result, err := s.service.ConvertAndStore(withRequestMetadata(r.Context(), r), req, target)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Row-Count", strconv.Itoa(result.Rows))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, result.Confirmation())
}

// parseConvertForm reads the multipart upload into a ConvertRequest. The
// conversion ID is assigned here so error responses carry it too.
func (s *Server) parseConvertForm(w http.ResponseWriter, r *http.Request) (core.ConvertRequest, error) {
	id := uuid.NewString()
	w.Header().Set(conversionIDHeader, id)

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return core.ConvertRequest{}, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, s.service.MaxFileSize())
		}
		return core.ConvertRequest{}, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.ConvertRequest{}, core.ErrNoFile
	}
	defer file.Close()

	if header.Size > s.service.MaxFileSize() {
		return core.ConvertRequest{}, fmt.Errorf("%w: %s is %d bytes, limit %d", core.ErrFileTooLarge, header.Filename, header.Size, s.service.MaxFileSize())
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return core.ConvertRequest{}, fmt.Errorf("read upload: %w", err)
	}

	hasHeader, err := formBool(r, "header", true)
	if err != nil {
		return core.ConvertRequest{}, err
	}
	indent, err := formBool(r, "indent", false)
	if err != nil {
		return core.ConvertRequest{}, err
	}

	return core.ConvertRequest{
		ID:        id,
		FileName:  header.Filename,
		Data:      data,
		Policy:    r.FormValue("policy"),
		HasHeader: hasHeader,
		Indent:    indent,
	}, nil
}

// formBool parses an optional boolean form field.
func formBool(r *http.Request, name string, def bool) (bool, error) {
	v := r.FormValue(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: field %q: %q is not a boolean", core.ErrInvalidRequest, name, v)
	}
	return b, nil
}

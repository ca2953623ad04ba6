// Package core provides the conversion workflow shared by the HTTP server
// and the CLI.
//
// The package holds no transport logic. Web handlers and the tabjson command
// build a [ConvertRequest] and hand it to the [Service].
//
// # Conversion
//
// A conversion runs in a fixed order:
//
//  1. The format is derived from the file name (table.KindFromFilename)
//  2. Empty and oversized uploads are rejected before any parsing
//  3. A slot is taken from the [Limiter], waiting up to Upload.MaxWaitTime
//  4. The bytes are loaded into a table.Table
//  5. The table is projected to JSON with the requested policy
//
// [Service.ConvertAndStore] validates the storage target first, then
// converts and hands the document to the configured sink.Sink under
// Sink.Timeout.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FMT001, PARSE001, PROJ001: Format, parse and projection errors
//   - SINK001, SINK002: Storage errors
//   - FILE001-FILE005, REQ001: Upload and request errors
//   - UPL002-UPL005: Capacity, cancellation and timeouts
//
// See error_messages.go for the full table.
package core

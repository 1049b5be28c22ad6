package model

import "errors"

var (
	// ErrManifestNotFound means a strategy found no file to read.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrManifestParse means a manifest existed but could not be decoded.
	ErrManifestParse = errors.New("manifest parse error")
	// ErrEnrichmentUnavailable means there is no local install cache to read.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
	// ErrExternalQuery means a vulnerability database request failed.
	ErrExternalQuery = errors.New("external query failure")
	// ErrAnalysisFatal marks a failure that aborted the whole analysis.
	ErrAnalysisFatal = errors.New("analysis failed")
)

package services

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Every error leaving a core operation is tagged with exactly one
// of these markers so callers can classify it with errors.Is.
var (
	ErrInvalidIdentifier    = errors.New("invalid identifier")
	ErrRemoteUnavailable    = errors.New("remote unavailable")
	ErrNotFound             = errors.New("not found")
	ErrDownloadFailed       = errors.New("download failed")
	ErrAssemblyFailed       = errors.New("assembly failed")
	ErrEmptyCollection      = errors.New("empty collection")
	ErrPersistenceCorrupted = errors.New("persistence corrupted")
	ErrConfiguration        = errors.New("configuration error")
	ErrStorage              = errors.New("storage error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStorage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

var kinds = []kindInfo{
	{ErrInvalidIdentifier, "invalid_identifier", "the identifier must be a non-empty string of digits"},
	{ErrNotFound, "not_found", "the work does not exist on the remote source"},
	{ErrRemoteUnavailable, "remote_unavailable", "the remote source could not be reached"},
	{ErrDownloadFailed, "download_failed", "one or more pages could not be downloaded"},
	{ErrAssemblyFailed, "assembly_failed", "the pages could not be assembled into a PDF"},
	{ErrEmptyCollection, "empty_collection", "the favorites collection is empty"},
	{ErrPersistenceCorrupted, "persistence_corrupted", "the favorites record is unreadable and was treated as empty"},
	{ErrConfiguration, "configuration", "the configuration is invalid"},
	{ErrStorage, "storage", "local storage failed"},
}

// Kind returns a stable snake_case identifier for the failure kind carried by err.
// The outermost marker wins when several are wrapped. It returns "" for nil and
// "internal" for errors without a known marker.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if k, ok := lookupKind(err); ok {
		return k.kind
	}
	return "internal"
}

// UserMessage renders err as a sentence suitable for showing to whoever issued
// the request. The wrapped cause is appended when present.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	k, ok := lookupKind(err)
	if !ok {
		return err.Error()
	}
	if cause := rootCause(err); cause != nil {
		return fmt.Sprintf("%s (%s)", k.text, cause.Error())
	}
	return k.text
}

type kindInfo struct {
	marker error
	kind   string
	text   string
}

func lookupKind(err error) (kindInfo, bool) {
	if marker := outerMarker(err); marker != nil {
		for _, k := range kinds {
			if k.marker == marker {
				return k, true
			}
		}
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k, true
		}
	}
	return kindInfo{}, false
}

func outerMarker(err error) error {
	for err != nil {
		if isMarker(err) {
			return err
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) > 0 && isMarker(errs[0]) {
				return errs[0]
			}
			return nil
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return nil
		}
	}
	return nil
}

// rootCause returns the error passed to the outermost Wrap call, or nil when
// err was built without a cause.
func rootCause(err error) error {
	u, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return nil
	}
	errs := u.Unwrap()
	if len(errs) < 2 || !isMarker(errs[0]) {
		return nil
	}
	return errs[len(errs)-1]
}

func isMarker(err error) bool {
	for _, k := range kinds {
		if err == k.marker {
			return true
		}
	}
	return false
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

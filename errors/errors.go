package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Validation, surfaced to the user as 4xx
	ErrNoFileUploaded     = fmt.Errorf("No file uploaded")
	ErrFileTooLarge       = fmt.Errorf("File too large")
	ErrFileTypeNotAllowed = fmt.Errorf("File type not allowed")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrUnknownEvent       = fmt.Errorf("unknown event")

	// Transport, isolated to one connection
	ErrBackpressure     = fmt.Errorf("send queue full")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrDisconnected     = fmt.Errorf("session disconnected")

	ErrBlobNotFound = fmt.Errorf("blob not found")
	ErrUploadFailed = fmt.Errorf("Upload failed")
)

// IsValidation reports whether err is a user-visible rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoFileUploaded) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrFileTypeNotAllowed) ||
		errors.Is(err, ErrInvalidPayload)
}

// HTTPStatus maps an error to the status code and public message of the HTTP boundary.
// Anything not known is reported as a generic upload failure.
func HTTPStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrNoFileUploaded):
		return http.StatusBadRequest, ErrNoFileUploaded.Error()
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error()
	case errors.Is(err, ErrFileTypeNotAllowed):
		return http.StatusUnsupportedMediaType, ErrFileTypeNotAllowed.Error()
	case errors.Is(err, ErrBlobNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, ErrUploadFailed.Error()
	}
}

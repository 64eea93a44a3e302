package errors

// Convenience constructors for the error taxonomy used by the pipeline.

// Config errors

func ConfigNotFound(path string) *TrackError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *TrackError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func CredentialsMissing(source, field string) *TrackError {
	return New(CategoryConfig, SeverityFatal, "source credentials missing").
		WithContext("source", source).
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *TrackError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Fetch errors

func NetworkFailed(source string, cause error) *TrackError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "request failed").
		WithContext("source", source)
}

func NetworkStatus(source string, status int) *TrackError {
	e := New(CategoryNetwork, SeverityWarning, "unexpected response status").
		WithContext("source", source).
		WithContext("status", status)
	// 5xx and 429 are transient; other statuses are not worth repeating.
	if status >= 500 || status == 429 {
		e.Retryable = true
	}
	return e
}

func FetchTimeout(source string, cause error) *TrackError {
	return WrapRetryable(cause, CategoryTimeout, SeverityWarning, "request timed out").
		WithContext("source", source)
}

func AuthRejected(source string, status int) *TrackError {
	return New(CategoryAuth, SeverityError, "authentication rejected").
		WithContext("source", source).
		WithContext("status", status)
}

func DataShape(source string, cause error) *TrackError {
	return Wrap(cause, CategoryDataShape, SeverityWarning, "unexpected payload shape").
		WithContext("source", source)
}

func RetriesExhausted(source string, attempts int, cause error) *TrackError {
	return Wrap(cause, CategoryNetwork, SeverityWarning, "retries exhausted").
		WithContext("source", source).
		WithContext("attempts", attempts)
}

// Storage errors

func StorageFailed(operation string, cause error) *TrackError {
	return Wrap(cause, CategoryStorage, SeverityError, "snapshot storage operation failed").
		WithContext("operation", operation)
}

// Internal errors

func Internal(message string, cause error) *TrackError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}

package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *DocPipeError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *DocPipeError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *DocPipeError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Pipeline errors

func StageFailed(stage string, cause error) *DocPipeError {
	return Wrap(cause, CategoryPipeline, SeverityFatal, "pipeline stage failed").
		WithContext("stage", stage)
}

func StoreError(operation string, cause error) *DocPipeError {
	return Wrap(cause, CategoryStore, SeverityFatal, "store operation failed").
		WithContext("operation", operation)
}

func ExportError(directory string, cause error) *DocPipeError {
	return Wrap(cause, CategoryExport, SeverityFatal, "export failed").
		WithContext("directory", directory)
}

// Host errors

func HostAuthError(cause error) *DocPipeError {
	return Wrap(cause, CategoryAuth, SeverityFatal, "host authentication failed")
}

func HostError(operation string, cause error) *DocPipeError {
	return WrapRetryable(cause, CategoryHost, SeverityError, "host request failed").
		WithContext("operation", operation)
}

// Network errors

func NetworkTimeout(url string, cause error) *DocPipeError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "network timeout").
		WithContext("url", url)
}

// Internal errors

func InternalError(message string, cause error) *DocPipeError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}

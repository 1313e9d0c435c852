package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *SiteError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("file", path)
}

func ConfigInvalid(path string, cause error) *SiteError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration invalid").
		WithContext("file", path)
}

func ValidationFailed(field, reason string) *SiteError {
	return New(CategoryValidation, SeverityFatal, "validation failed: "+field+": "+reason).
		WithContext("field", field)
}

// Page validation errors. DuplicateURL and MissingTemplate abort the build by
// default; a page without a url is skipped.

func MissingURL(file string) *SiteError {
	return New(CategoryValidation, SeverityWarning, "url not defined").
		WithContext("file", file)
}

func DuplicateURL(url, file string) *SiteError {
	return New(CategoryValidation, SeverityFatal, "duplicate URL").
		WithContext("url", url).
		WithContext("file", file)
}

// DuplicateOutput reports a url spelled differently from an earlier one that
// maps to the same output file.
func DuplicateOutput(url, other, file string) *SiteError {
	return DuplicateURL(url, file).WithContext("conflicts_with", other)
}

func MissingTemplate(file string) *SiteError {
	return New(CategoryValidation, SeverityFatal, "template not defined").
		WithContext("file", file)
}

// Rendering errors

func WidgetCompile(name string, cause error) *SiteError {
	return Wrap(cause, CategoryWidget, SeverityFatal, "widget failed to compile").
		WithContext("widget", name)
}

func RenderFailed(file string, cause error) *SiteError {
	return Wrap(cause, CategoryRender, SeverityError, "page render failed").
		WithContext("file", file)
}

func OutputFailed(path string, cause error) *SiteError {
	return Wrap(cause, CategoryFileSystem, SeverityError, "output write failed").
		WithContext("output", path)
}

// Runtime errors

func Canceled(cause error) *SiteError {
	return Wrap(cause, CategoryRuntime, SeverityFatal, "build canceled")
}

func InternalError(message string, cause error) *SiteError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}

package errors

type Code string

const (
	CodeUnknown  Code = "UNKNOWN"
	CodeInternal Code = "INTERNAL_ERROR"

	CodeConfigValidation Code = "CONFIG_VALIDATION_ERROR"
	CodeConfigReadError  Code = "CONFIG_READ_ERROR"
	CodeConfigParseError Code = "CONFIG_PARSE_ERROR"

	// Pre-run errors. Any of these aborts the run before the first provider call.
	CodeMalformedDeclaration Code = "MALFORMED_DECLARATION"
	CodeManifestReadError    Code = "MANIFEST_READ_ERROR"
	CodeManifestParseError   Code = "MANIFEST_PARSE_ERROR"
	CodeUnresolvedDependency Code = "UNRESOLVED_DEPENDENCY"
	CodeCyclicDependency     Code = "CYCLIC_DEPENDENCY"

	// Convergence-time errors, surfaced per declaration in the run report.
	CodeProviderTransient Code = "PROVIDER_TRANSIENT_ERROR"
	CodeProviderFatal     Code = "PROVIDER_FATAL_ERROR"
	CodeProviderAuth      Code = "PROVIDER_AUTH_ERROR"
	CodeResourceNotFound  Code = "RESOURCE_NOT_FOUND"
	CodeUpstreamFailure   Code = "UPSTREAM_DEPENDENCY_FAILED"
	CodeUnsupportedKind   Code = "UNSUPPORTED_RESOURCE_KIND"
	CodeTimeout           Code = "TIMEOUT_ERROR"
)

func (c Code) String() string {
	return string(c)
}

package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal        ErrorCode = "COMMON_001"
	ErrCodeBadRequest      ErrorCode = "COMMON_002"
	ErrCodeNotFound        ErrorCode = "COMMON_005"
	ErrCodeConflict        ErrorCode = "COMMON_006"
	ErrCodeTimeout         ErrorCode = "COMMON_009"
	ErrCodeValidation      ErrorCode = "COMMON_010"
	ErrCodeSerialization   ErrorCode = "COMMON_011"
	ErrCodeDatabaseError   ErrorCode = "COMMON_012"
	ErrCodeCacheError      ErrorCode = "COMMON_013"
	ErrCodeExternalService ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled ErrorCode = "COMMON_015"
	ErrCodeCancelled       ErrorCode = "COMMON_017"
)

// Aliases used by call sites that predate the module prefixes.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Molecule Module Error Codes
const (
	ErrCodeMoleculeInvalidSMILES    ErrorCode = "MOL_001"
	ErrCodeMoleculeParsingFailed    ErrorCode = "MOL_006"
	ErrCodeMoleculeSanitizeFailed   ErrorCode = "MOL_007"
	ErrCodeMoleculeKekulizeFailed   ErrorCode = "MOL_008"
	ErrCodeMoleculeValenceInvalid   ErrorCode = "MOL_009"
	ErrCodeSubstructureSearchFailed ErrorCode = "MOL_012"
	ErrCodeSMARTSInvalid            ErrorCode = "MOL_016"
)

// Transform Descriptor Module Error Codes
const (
	ErrCodeInputShape          ErrorCode = "TD_001"
	ErrCodeDescriptorFailed    ErrorCode = "TD_002"
	ErrCodeRowCountMismatch    ErrorCode = "TD_003"
	ErrCodePatternTableInvalid ErrorCode = "TD_004"
	ErrCodeOutputWriteFailed   ErrorCode = "TD_005"
	ErrCodeInputReadFailed     ErrorCode = "TD_006"
	ErrCodeSchemaConflict      ErrorCode = "TD_007"
)

// Infrastructure Error Codes
const (
	ErrCodeStorageError   ErrorCode = "INFRA_001"
	ErrCodeMessagingError ErrorCode = "INFRA_002"
	ErrCodeMetricsError   ErrorCode = "INFRA_003"
)

// ErrorCodeMessage maps ErrorCodes to their default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:        "internal error",
	ErrCodeBadRequest:      "bad request",
	ErrCodeNotFound:        "resource not found",
	ErrCodeConflict:        "resource conflict",
	ErrCodeTimeout:         "request timeout",
	ErrCodeValidation:      "validation failed",
	ErrCodeSerialization:   "serialization error",
	ErrCodeDatabaseError:   "database error",
	ErrCodeCacheError:      "cache error",
	ErrCodeExternalService: "external service error",
	ErrCodeFeatureDisabled: "feature disabled",
	ErrCodeCancelled:       "operation cancelled",

	ErrCodeMoleculeInvalidSMILES:    "invalid SMILES format",
	ErrCodeMoleculeParsingFailed:    "failed to parse molecule",
	ErrCodeMoleculeSanitizeFailed:   "molecule sanitization failed",
	ErrCodeMoleculeKekulizeFailed:   "can't kekulize molecule",
	ErrCodeMoleculeValenceInvalid:   "explicit valence greater than permitted",
	ErrCodeSubstructureSearchFailed: "substructure search failed",
	ErrCodeSMARTSInvalid:            "invalid SMARTS pattern",

	ErrCodeInputShape:          "input table must have at least 4 columns: ID, A, B, Product",
	ErrCodeDescriptorFailed:    "descriptor computation failed",
	ErrCodeRowCountMismatch:    "row count mismatch between aligned tables",
	ErrCodePatternTableInvalid: "invalid fragment pattern table",
	ErrCodeOutputWriteFailed:   "failed to write output table",
	ErrCodeInputReadFailed:     "failed to read input table",
	ErrCodeSchemaConflict:      "feature column names collide",

	ErrCodeStorageError:   "object storage error",
	ErrCodeMessagingError: "messaging error",
	ErrCodeMetricsError:   "metrics export error",
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

package status

// ErrorCode is a numeric code to classify API errors in a stable way
type ErrorCode int

// Reserved ranges by domain:
//   0-999:     client/validation errors
//   1000-1999: Upload internal
//   2000-2999: Chat internal
//   3000-3999: Clear internal

const (
	BadRequestBase    ErrorCode = 0
	InternalErrorBase ErrorCode = 1000
)

// client/validation errors
const (
	InvalidRequestBody     ErrorCode = BadRequestBase + iota // 0
	MissingParams                                            // 1
	UnsupportedFileType                                      // 2
	EmptyFile                                                // 3
	EmptyQuestion                                            // 4
	NoDocumentsIndexed                                       // 5
	DependencyUnavailable                                    // 6
)

// Upload internal errors start at 1000
const (
	UploadInternal      ErrorCode = InternalErrorBase + iota // 1000
	UploadStoreFailed                                        // 1001
	UploadIngestFailed                                       // 1002
	UploadAutoAskFailed                                      // 1003
)

// Chat internal errors start at 2000
const (
	ChatInternal       ErrorCode = 2000 + iota // 2000
	ChatRetrieveFailed                         // 2001
	ChatAnswerFailed                           // 2002
)

// Clear internal errors start at 3000
const (
	ClearInternal ErrorCode = 3000 + iota // 3000
)

const (
	ErrorCodeInternal ErrorCode = 9000
)

// CodedError represents an error with an associated ErrorCode
type CodedError interface {
	error
	ErrorCode() ErrorCode
}

type codedError struct {
	code ErrorCode
	err  error
}

func (e codedError) Error() string        { return e.err.Error() }
func (e codedError) Unwrap() error        { return e.err }
func (e codedError) ErrorCode() ErrorCode { return e.code }

// New creates a new CodedError with the given code and underlying error
func New(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return codedError{code: code, err: err}
}

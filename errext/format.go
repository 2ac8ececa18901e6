package errext

import "errors"

// Format extracts the user-facing message and structured fields (currently
// just "hint", if present) from err. If err is an Exception, its stack
// trace is used as the message instead of err.Error().
func Format(err error) (errorText string, fields map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	errorText = err.Error()
	var exception Exception
	if errors.As(err, &exception) {
		errorText = exception.StackTrace()
	}

	var hinted HasHint
	if errors.As(err, &hinted) {
		fields = map[string]interface{}{"hint": hinted.Hint()}
	}

	return errorText, fields
}

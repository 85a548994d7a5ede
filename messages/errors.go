package messages

import (
	"fmt"
	"strings"
)

// DecodeError describes a host frame that could not be accepted.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// within nests the error's parameter under prefix.
func (e *DecodeError) within(prefix string) *DecodeError {
	if e.Param == "" {
		e.Param = prefix
	} else {
		e.Param = prefix + "." + e.Param
	}
	return e
}

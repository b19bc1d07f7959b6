package riff

import (
	"errors"
	"fmt"
)

// Status mirrors the status codes a decoder reports back to its caller.
type Status int

const (
	StatusOK Status = iota
	StatusOutOfMemory
	StatusInvalidParam
	StatusBitstreamError
	StatusUnsupportedFeature
	StatusSuspended
	StatusUserAbort
	StatusNotEnoughData
)

var (
	ErrOutOfMemory        = fmt.Errorf("out of memory")
	ErrInvalidParam       = fmt.Errorf("invalid parameter")
	ErrBitstream          = fmt.Errorf("bitstream error")
	ErrUnsupportedFeature = fmt.Errorf("unsupported feature")
	ErrSuspended          = fmt.Errorf("suspended")
	ErrUserAbort          = fmt.Errorf("user abort")
	ErrNotEnoughData      = fmt.Errorf("not enough data")
)

var statusErrors = map[Status]error{
	StatusOutOfMemory:        ErrOutOfMemory,
	StatusInvalidParam:       ErrInvalidParam,
	StatusBitstreamError:     ErrBitstream,
	StatusUnsupportedFeature: ErrUnsupportedFeature,
	StatusSuspended:          ErrSuspended,
	StatusUserAbort:          ErrUserAbort,
	StatusNotEnoughData:      ErrNotEnoughData,
}

// Err returns the sentinel error for s, or nil for StatusOK.
func (s Status) Err() error {
	return statusErrors[s]
}

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	if err, ok := statusErrors[s]; ok {
		return err.Error()
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// StatusOf maps an error returned by this module back to its status code.
// Unknown errors report as bitstream errors.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	for s, target := range statusErrors {
		if errors.Is(err, target) {
			return s
		}
	}
	return StatusBitstreamError
}

package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindDiskSpace ErrorKind = "disk_space"
	KindArchive   ErrorKind = "archive"
	KindPatch     ErrorKind = "patch"
	KindConfig    ErrorKind = "config"
	KindCancelled ErrorKind = "cancelled"
	KindIO        ErrorKind = "io"
)

// Sentinels for errors.Is; a *ThemeError matches the sentinel of its kind.
var (
	ErrNetwork   = errors.New("network error")
	ErrDiskSpace = errors.New("not enough disk space")
	ErrArchive   = errors.New("archive error")
	ErrPatch     = errors.New("patch error")
	ErrConfig    = errors.New("config error")
	ErrCancelled = errors.New("cancelled by user")
	ErrIO        = errors.New("io error")
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork:   ErrNetwork,
	KindDiskSpace: ErrDiskSpace,
	KindArchive:   ErrArchive,
	KindPatch:     ErrPatch,
	KindConfig:    ErrConfig,
	KindCancelled: ErrCancelled,
	KindIO:        ErrIO,
}

// ThemeError carries a bracketed Tag the UI can localize without parsing the
// message, e.g. "[SPACE_LOW:95]" or "[HTTP:404]".
type ThemeError struct {
	Kind    ErrorKind
	Tag     string
	Message string
	Err     error
}

func (e *ThemeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}

	if e.Tag == "" {
		return msg
	}

	return e.Tag + " " + msg
}

func (e *ThemeError) Unwrap() error {
	return e.Err
}

func (e *ThemeError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func NewError(kind ErrorKind, tag, message string, err error) *ThemeError {
	return &ThemeError{Kind: kind, Tag: tag, Message: message, Err: err}
}

func NetworkError(code int, message string, err error) *ThemeError {
	tag := "[NETWORK]"
	if code > 0 {
		tag = fmt.Sprintf("[HTTP:%d]", code)
	}

	return NewError(KindNetwork, tag, message, err)
}

// DiskSpaceError embeds the free space, in MiB, into its tag.
func DiskSpaceError(available uint64, message string) *ThemeError {
	return NewError(KindDiskSpace, fmt.Sprintf("[SPACE_LOW:%d]", available/(1<<20)), message, nil)
}

func ArchiveError(message string, err error) *ThemeError {
	return NewError(KindArchive, "[ARCHIVE]", message, err)
}

func PatchError(message string, err error) *ThemeError {
	return NewError(KindPatch, "[PATCH]", message, err)
}

func ConfigError(message string, err error) *ThemeError {
	return NewError(KindConfig, "[CONFIG]", message, err)
}

func CancelledError() *ThemeError {
	return NewError(KindCancelled, "[CANCELLED]", "cancelled by user", nil)
}

func IOError(message string, err error) *ThemeError {
	return NewError(KindIO, "[IO]", message, err)
}

// KindOf returns the kind of err if it is, or wraps, a *ThemeError.
func KindOf(err error) (ErrorKind, bool) {
	var te *ThemeError
	if errors.As(err, &te) {
		return te.Kind, true
	}

	return "", false
}

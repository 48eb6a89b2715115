package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFilePath      = errors.New("invalid file path")
	ErrFileNotFound         = errors.New("file not found")
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrPluginFailed         = errors.New("plugin failed")
	ErrDaemonAlreadyRunning = errors.New("daemon already running")
)

func NewFileError(path string, reason error) error {
	return fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, reason)
}

func NewConfigError(field string, value interface{}) error {
	return fmt.Errorf("%w: field=%s value=%v", ErrConfigInvalid, field, value)
}

func NewPluginError(name, op string, err error) error {
	return fmt.Errorf("%w: plugin=%s op=%s: %v", ErrPluginFailed, name, op, err)
}

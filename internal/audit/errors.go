package audit

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("audit: invalid input")
	ErrStorage      = errors.New("audit: storage failure")
)

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

package index

import (
	"errors"
	"fmt"
)

// ErrRecordExists is returned by Insert when a non-deleted value is already visible for the given
// key. This may be wrapped, and should normally be tested using errors.Is(err, ErrRecordExists).
var ErrRecordExists = errors.New("record exists")

type recordExistsError string

func (e recordExistsError) Error() string {
	return fmt.Sprintf("record with key %q exists", string(e))
}

func (e recordExistsError) Is(err error) bool {
	if err == ErrRecordExists {
		return true
	}
	downcasted, ok := err.(recordExistsError)
	return ok && downcasted == e
}

func recordExists(k Key) error { return recordExistsError(k) }

// ErrRecordDoesNotExist is returned by Get and Update when no non-deleted value is visible for
// the given key (Delete instead reports that nothing was removed). This may be wrapped, and should normally be tested using
// errors.Is(err, ErrRecordDoesNotExist).
var ErrRecordDoesNotExist = errors.New("record does not exist")

type recordDoesNotExistError string

func (e recordDoesNotExistError) Error() string {
	return fmt.Sprintf("record with key %q does not exist", string(e))
}

func (e recordDoesNotExistError) Is(err error) bool {
	if err == ErrRecordDoesNotExist {
		return true
	}
	downcasted, ok := err.(recordDoesNotExistError)
	return ok && downcasted == e
}

func recordDoesNotExist(k Key) error { return recordDoesNotExistError(k) }

// Package hook calls user-supplied hooks and normalizes their failures.
package hook

import (
	"fmt"

	"github.com/vango-dev/vps/internal/errors"
)

// Call runs fn, the body of the named hook defined in file. A panic
// becomes an E402 error and a returned error is wrapped in an E401 error;
// coded errors returned by the hook are passed through unchanged.
func Call(name, file string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("E402").
				WithDetail(fmt.Sprintf("%s: %v", name, r)).
				WithFile(file)
		}
	}()

	if err := fn(); err != nil {
		var ve *errors.VPSError
		if errors.As(err, &ve) {
			return err
		}
		return errors.New("E401").WithDetail(name).WithFile(file).Wrap(err)
	}
	return nil
}

package vaultkv

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/vault/api"
)

// ErrNotExist means the path is not present in the mount.
type ErrNotExist struct {
	Path string
}

func (e ErrNotExist) Error() string {
	return fmt.Sprintf("vaultkv: path %q does not exist", e.Path)
}

func IsErrNotExist(err error) bool {
	var e ErrNotExist
	return errors.As(err, &e)
}

// ErrForbidden means the token is not allowed to perform the operation.
type ErrForbidden struct {
	Path string
}

func (e ErrForbidden) Error() string {
	return fmt.Sprintf("vaultkv: permission denied for %q", e.Path)
}

func IsErrForbidden(err error) bool {
	var e ErrForbidden
	return errors.As(err, &e)
}

// mapErr converts the api client's response errors into this package's
// error kinds.  Everything else passes through untouched.
func mapErr(err error, p string) error {
	var rerr *api.ResponseError
	if errors.As(err, &rerr) {
		switch rerr.StatusCode {
		case http.StatusNotFound:
			return ErrNotExist{Path: p}
		case http.StatusForbidden:
			return ErrForbidden{Path: p}
		}
	}
	return err
}

//go:build !linux

package upstream

import "errors"

func setSockMark(_, _ int) error {
	return errors.New("upstream: SO_MARK unsupported on this platform")
}

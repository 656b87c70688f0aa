//go:build !linux

package source

import (
	"fmt"
	"io"
)

func watchDataReady(chip string, offset int) (<-chan struct{}, io.Closer, error) {
	return nil, nil, fmt.Errorf("source: gpio data-ready unsupported on this platform")
}

//go:build linux

package source

import (
	"fmt"
	"io"

	"github.com/warthog618/go-gpiocdev"
)

// watchDataReady requests a GPIO line as a rising-edge input and signals on
// the returned channel for every edge. Edges arriving while a signal is
// still pending are coalesced.
func watchDataReady(chip string, offset int) (<-chan struct{}, io.Closer, error) {
	ready := make(chan struct{}, 1)
	handler := func(gpiocdev.LineEvent) {
		select {
		case ready <- struct{}{}:
		default:
		}
	}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(handler),
		gpiocdev.WithConsumer("tiltmatrix-drdy"))
	if err != nil {
		return nil, nil, fmt.Errorf("source: request %s line %d: %w", chip, offset, err)
	}
	return ready, line, nil
}

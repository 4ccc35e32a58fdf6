package commands

import (
	"fmt"
	"io"

	"github.com/devlink-robotics/devlink-go/pkg/log"
)

// RunFilter copies matching events into a new capture file and reports
// how many were written.
func RunFilter(path string, filter log.Filter, output string, w io.Writer) error {
	out, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}

	count := 0
	err = eachEvent(path, filter, func(e log.Event) error {
		out.Log(e)
		count++
		return nil
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Filtered %d events to %s\n", count, output)
	return nil
}

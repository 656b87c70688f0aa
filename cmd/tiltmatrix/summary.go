package main

import (
	"fmt"
	"io"

	"tiltmatrix/internal/record"
)

type SummaryCmd struct {
	Log string `arg:"" type:"existingfile" help:"Sample log to summarize."`
}

func (c *SummaryCmd) Run(out io.Writer) error {
	recs, session, err := record.ReadFile(c.Log)
	if err != nil {
		return err
	}
	if session != "" {
		fmt.Fprintf(out, "session=%s\n", session)
	}
	_, err = io.WriteString(out, record.Summarize(recs).String())
	return err
}

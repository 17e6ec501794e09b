package reporter

import "context"

// Reporter collects one summary line per reported test and writes them out in
// one batch.
type Reporter interface {
	// Log appends a line to the report buffer.  Tab characters separate
	// columns.  Reporter will not write lines until Reporter.Flush is called.
	Log(context.Context, string)

	// Flush flushes the report buffer.
	Flush(context.Context) error
}

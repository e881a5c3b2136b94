package archiver

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/coldhome-io/coldhome/internal/reconcile"
)

var (
	statusActiveColor   = color.New(color.FgYellow)
	statusUploadedColor = color.New(color.FgGreen)
	statusSkippedColor  = color.New(color.FgCyan)
	statusFailedColor   = color.New(color.FgRed)
)

// Reporter prints per-directory status lines and the run-end aggregate for
// the operator. Results arrive from many workers, so lines are serialized
// under a mutex.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewReporter creates a Reporter writing to out.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Line prints one directory's status line.
func (rep *Reporter) Line(r Result) {
	rep.mu.Lock()
	defer rep.mu.Unlock()

	fmt.Fprintf(rep.out, "%-32s -> ", r.Name)

	switch r.Status {
	case StatusActive:
		statusActiveColor.Fprint(rep.out, "active")
		fmt.Fprintln(rep.out, " -> skipped")

	case StatusTooLarge:
		fmt.Fprintf(rep.out, "too big (%s) -> skipped\n", humanize.Bytes(uint64(r.UncompressedBytes)))

	case StatusWouldArchive:
		fmt.Fprintf(rep.out, "inactive (%s) -> would archive (dry run)\n", humanize.Bytes(uint64(r.UncompressedBytes)))

	case StatusArchived:
		fmt.Fprintf(rep.out, "archived %s -> ", humanize.Bytes(uint64(r.CompressedBytes)))
		if r.Outcome == reconcile.OutcomeUploaded {
			statusUploadedColor.Fprint(rep.out, "uploaded")
		} else {
			statusSkippedColor.Fprint(rep.out, "validated")
		}
		if r.Deleted {
			fmt.Fprint(rep.out, " -> notice written -> deleted")
		}
		fmt.Fprintln(rep.out)

	case StatusFailed:
		statusFailedColor.Fprint(rep.out, "failed")
		fmt.Fprintf(rep.out, ": %v\n", r.Err)
	}
}

// Summary prints the run-end aggregate.
func (rep *Reporter) Summary(s Summary) {
	rep.mu.Lock()
	defer rep.mu.Unlock()

	fmt.Fprintf(rep.out,
		"Active: %d, Inactive: %d, Too large: %d, Failed: %d, Inactive uncompressed: %s, Inactive compressed: %s\n",
		s.Active, s.Inactive, s.TooLarge, s.Failed,
		humanize.Bytes(uint64(s.UncompressedBytes)),
		humanize.Bytes(uint64(s.CompressedBytes)),
	)
}

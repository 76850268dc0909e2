// Command credential-engine-audit-tail is an operator CLI that tails
// the audit queue's on-disk log so issuance/revocation/claim events can
// be shipped to an external collector without coupling the shipper to
// the request path (audit.Queue is append-only and never read back by
// the engine itself).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hpcloud/tail"
)

func main() {
	path := flag.String("file", "", "path to the audit queue's drain log")
	fromStart := flag.Bool("from-start", false, "tail from the beginning of the file instead of the end")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: credential-engine-audit-tail -file <path>")
		os.Exit(1)
	}

	t, err := tail.TailFile(*path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  startLocation(*fromStart),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "tailing %s: %s\n", *path, err)
		os.Exit(1)
	}

	for line := range t.Lines {
		if line.Err != nil {
			fmt.Fprintf(os.Stderr, "tail error: %s\n", line.Err)
			continue
		}
		fmt.Println(line.Text)
	}
}

func startLocation(fromStart bool) *tail.SeekInfo {
	if fromStart {
		return &tail.SeekInfo{Whence: io.SeekStart}
	}
	return &tail.SeekInfo{Whence: io.SeekEnd}
}

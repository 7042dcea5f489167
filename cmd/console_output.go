package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ConsoleWriter turns zerolog's JSON events into colored, human readable
// lines. Task output keeps its task name as a prefix and commands are echoed
// the way make prints recipes.
type ConsoleWriter struct {
	out  io.Writer
	line strings.Builder
	lock sync.Mutex
}

func NewConsoleWriter() *ConsoleWriter {
	return &ConsoleWriter{out: os.Stderr}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.line.Reset()
	switch evt["level"] {
	case "fatal", "error":
		w.line.WriteString("[red]")
	case "warn":
		w.line.WriteString("[yellow]")
	case "debug", "trace":
		w.line.WriteString("[blue]")
	default:
		w.line.WriteString("[green]")
	}

	task, ok := evt["task"]
	if ok {
		w.line.WriteString(task.(string) + ": ")
	}

	if evt["level"] == "error" {
		w.line.WriteString("Error: ")
	}

	msg, _ := evt["message"].(string)
	w.line.WriteString(msg)

	errorDetails, ok := evt["error"]
	if ok {
		w.line.WriteString("\n")
		w.line.WriteString(errorDetails.(string))
	}

	if os.Getenv("DAEDALUS_DEBUG") != "" {
		w.line.WriteString("\n")
		for name, value := range evt {
			w.line.WriteString(fmt.Sprintf("  %s: %+v\n", name, value))
		}
	}

	w.line.WriteString("[reset]\n")
	return colorstring.Fprint(w.out, w.line.String())
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, os.Getenv("DAEDALUS_DEBUG") != "")
	}
}

// Command ema-voice is a terminal client for a spoken question and answer
// session against an answer stream service.
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

type options struct {
	Run    *runCommand    `command:"run" description:"Start a voice session (default)"`
	Schema *schemaCommand `command:"schema" description:"Print the JSON schema of the configuration file"`
}

func main() {
	opts := &options{Run: &runCommand{}, Schema: &schemaCommand{}}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.SubcommandsOptional = true

	args := os.Args[1:]
	if len(args) == 0 || args[0] != "schema" && args[0] != "run" {
		args = append([]string{"run"}, args...)
	}

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Stdout.WriteString(err.Error() + "\n")
			return
		}
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

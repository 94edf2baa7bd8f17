package main

import (
	"fmt"

	"github.com/mattn/go-shellwords"
)

// splitArgs breaks a console line into words with shell quoting rules.
// Variables and backticks are left as typed since they often appear in
// message text.
func splitArgs(line string) ([]string, error) {
	p := shellwords.NewParser()
	p.ParseEnv = false
	p.ParseBacktick = false
	args, err := p.Parse(line)
	if err != nil {
		return nil, err
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("quote %q to use it in an argument", line[p.Position:p.Position+1])
	}
	return args, nil
}

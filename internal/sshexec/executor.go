package sshexec

import (
	"context"
	"regexp"
	"strings"
)

// Executor runs a command and returns its combined output. Remote
// satisfies it; Pool does not, since its Run also takes the target host.
type Executor interface {
	Run(ctx context.Context, cmd string) (string, error)
	Close() error
}

// Quote* functions are copied from github.com/alessio/shellescape package.
var pattern = regexp.MustCompile(`[^\w@%+=:,./-]`)

// Quote returns a shell-escaped version of s, safe to use as a single
// token in a remote command line.
func Quote(s string) string {
	if len(s) == 0 {
		return "''"
	}
	if pattern.MatchString(s) {
		return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
	}
	return s
}

// QuoteCommand joins args into a shell-escaped command string.
func QuoteCommand(args ...string) string {
	l := make([]string, len(args))
	for i, s := range args {
		l[i] = Quote(s)
	}
	return strings.Join(l, " ")
}

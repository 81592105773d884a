package common

import (
	"log"
	"os/user"
	"strings"
	"time"
)

var verboseEnabled bool

func EnableVerbose() { verboseEnabled = true }

func VLogf(f string, v ...interface{}) {
	if verboseEnabled {
		log.Printf(f, v...)
	}
}

func ClampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~") {
		u, _ := user.Current()
		if u != nil {
			return strings.Replace(p, "~", u.HomeDir, 1)
		}
	}
	return p
}

// FirstLine trims the output of single-value subcommands that print a
// trailing newline (and sometimes extra addresses on later lines).
func FirstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// env reads typed values and collects every problem so that one run
// reports all missing or malformed variables at once.
type env struct {
	lookup   LookupFunc
	problems []string
}

func (e *env) get(key string) string {
	v, ok := e.lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// must retrieves a required variable.
func (e *env) must(key string) string {
	v := e.get(key)
	if v == "" {
		e.problems = append(e.problems, "missing required env var: "+key)
	}
	return v
}

func (e *env) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e *env) boolean(key string, def bool) bool {
	v := e.get(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	e.problems = append(e.problems, fmt.Sprintf("invalid bool for %s: %q", key, v))
	return def
}

func (e *env) integer(key string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

// duration accepts Go durations ("30s") and bare integers as seconds.
func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}

func (e *env) oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(e.str(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	e.problems = append(e.problems, fmt.Sprintf("invalid value for %s: %q (want one of %s)", key, v, strings.Join(allowed, ", ")))
	return def
}

func (e *env) err() error {
	if len(e.problems) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(e.problems, "; "))
}

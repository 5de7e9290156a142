// Package logging provides the server's leveled, identity-tagged log
// output. It wraps a plain stdlib log.Logger and color-codes the identity
// tag of each line by event kind, inside gray brackets: white for neutral
// events, blue for chat, yellow for recoverable per-frame errors, red for
// denied operations. The message text itself is not colored.
package logging

import (
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	bracket = color.New(color.FgHiBlack)
	info    = color.New(color.FgWhite)
	chat    = color.New(color.FgBlue)
	warn    = color.New(color.FgYellow)
	deny    = color.New(color.FgRed)

	level  = "info"
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

// Init reads the verbosity level from the given environment variable
// (default "info" if unset).
func Init(envVar string) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(envVar)))
	if v == "" {
		v = "info"
	}
	level = v
}

func enabled(lvl string) bool {
	order := map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}
	cur, ok := order[level]
	if !ok {
		cur = order["info"]
	}
	want, ok := order[lvl]
	if !ok {
		want = order["info"]
	}
	return want >= cur
}

func line(c *color.Color, who, msg string) string {
	return bracket.Sprint("[") + c.Sprint(who) + bracket.Sprint("] ") + msg
}

// System logs a neutral, server-originated line (no client identity
// attached), e.g. "listening on ...".
func System(msg string) {
	if !enabled("info") {
		return
	}
	logger.Println(line(info, "flow", msg))
}

// Info logs a neutral event under a client identity (addr or id:name).
func Info(who, msg string) {
	if !enabled("info") {
		return
	}
	logger.Println(line(info, who, msg))
}

// Chat logs delivered chat content under the sender's identity, at debug
// level only.
func Chat(who, msg string) {
	if !enabled("debug") {
		return
	}
	logger.Println(line(chat, who, msg))
}

// Warn logs a recoverable per-frame error (parse/schema/auth/not-found/
// state failures) under the sender's identity.
func Warn(who, msg string) {
	if !enabled("warn") {
		return
	}
	logger.Println(line(warn, who, msg))
}

// Deny logs an authorization failure (spoofed offer/session response).
func Deny(who, msg string) {
	if !enabled("warn") {
		return
	}
	logger.Println(line(deny, who, msg))
}

// Fatal logs and exits non-zero; a listener bind failure is the one
// unrecoverable error class in this server.
func Fatal(msg string, args ...interface{}) {
	logger.Fatalf(msg, args...)
}

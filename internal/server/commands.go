package server

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

type commandKind int

const (
	commandNone commandKind = iota
	commandJoin
	commandKick
)

// parseCommand splits text on its first run of whitespace and matches the verb
// exactly against the configured keywords. The remainder is returned trimmed.
func parseCommand(text string, keywords CommandConfig) (commandKind, string) {
	verb, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		verb, rest = text[:i], strings.TrimSpace(text[i:])
	}

	switch verb {
	case keywords.Join:
		return commandJoin, rest
	case keywords.Kick:
		return commandKick, rest
	default:
		return commandNone, ""
	}
}

var (
	errChannelNameEmpty   = errors.New("channel name is empty")
	errChannelNamePrefix  = errors.New("channel name must start with '#' or '&'")
	errChannelNameTooLong = errors.New("channel name is too long")
	errChannelNameChars   = errors.New("channel name contains a space, comma or control G")
)

// validateChannelName checks a JOIN argument: a '#' or '&' prefix, at most
// maxLen characters, and no space, comma or BEL.
func validateChannelName(name string, maxLen int) error {
	if name == "" {
		return errChannelNameEmpty
	}
	if name[0] != '#' && name[0] != '&' {
		return errChannelNamePrefix
	}
	if utf8.RuneCountInString(name) > maxLen {
		return errChannelNameTooLong
	}
	if strings.ContainsAny(name, " ,\a") || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return errChannelNameChars
	}
	return nil
}

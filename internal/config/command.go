package config

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseCommand splits a shell-style command line into argv. Quoting follows
// sh: single quotes are literal, double quotes honor \" and \\, and a bare
// backslash escapes the next rune. Nothing is expanded except a leading ~/
// on the executable. Blank input yields a disabled command.
func ParseCommand(raw string) (CommandConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CommandConfig{}, nil
	}

	argv, err := splitCommand(raw)
	if err != nil {
		return CommandConfig{}, err
	}
	argv[0] = expandUserPath(argv[0])
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

func splitCommand(raw string) ([]string, error) {
	var (
		argv    []string
		word    strings.Builder
		inWord  bool
		quote   rune
		quoteAt int
	)
	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch quote {
		case '\'':
			if r == '\'' {
				quote = 0
			} else {
				word.WriteRune(r)
			}
			continue
		case '"':
			switch {
			case r == '"':
				quote = 0
			case r == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\'):
				i++
				word.WriteRune(runes[i])
			default:
				word.WriteRune(r)
			}
			continue
		}

		switch {
		case unicode.IsSpace(r):
			if inWord {
				argv = append(argv, word.String())
				word.Reset()
				inWord = false
			}
		case r == '\'' || r == '"':
			quote, quoteAt, inWord = r, i, true
		case r == '\\':
			if i+1 == len(runes) {
				return nil, fmt.Errorf("command %q ends with a bare backslash", raw)
			}
			i++
			word.WriteRune(runes[i])
			inWord = true
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("command %q has an unterminated %c quote at column %d", raw, quote, quoteAt+1)
	}
	if inWord {
		argv = append(argv, word.String())
	}
	return argv, nil
}

// FormatCommand renders argv so that ParseCommand reads it back unchanged.
func FormatCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsFunc(arg, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(`'"\`, r)
	}) {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func mustParseCommand(raw string) CommandConfig {
	cmd, err := ParseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

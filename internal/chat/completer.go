package chat

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mevdschee/chatd/internal/editor"
)

// completerFor builds the editor completion hook for one session. It is
// aware of three contexts: command names after a leading "/", subcommand
// or enum words, and per-command argument completion (user names by
// default, file paths for the key-list load commands).
func completerFor(r *Room, s *Session) editor.Completer {
	return func(text string, cursor int) ([]string, int) {
		head := text[:cursor]
		start := strings.LastIndex(head, " ") + 1
		word := head[start:]

		if start == 0 {
			if strings.HasPrefix(word, "/") {
				return commandNames(s, word), 0
			}
			return memberNames(r, word), 0
		}

		if !strings.HasPrefix(head, "/") {
			return memberNames(r, word), start
		}

		tokens := strings.Fields(head[:start])
		cmd := commandIndex[strings.ToLower(strings.TrimPrefix(tokens[0], "/"))]
		if cmd == nil {
			return nil, start
		}
		args := tokens[1:]

		if len(args) == 0 && len(cmd.Sub) > 0 {
			return filterPrefix(cmd.Sub, word, " "), start
		}
		if cmd.Complete != nil {
			return cmd.Complete(r, s, args, word), start
		}
		return memberNames(r, word), start
	}
}

// commandNames completes the first word of a command line, including the
// leading slash. Operator commands are hidden from regular users.
func commandNames(s *Session, word string) []string {
	var out []string
	for _, c := range commands {
		if c.OpOnly && !s.User.IsOp() {
			continue
		}
		if strings.HasPrefix("/"+c.Name, word) {
			out = append(out, "/"+c.Name+" ")
		}
	}
	return out
}

func memberNames(r *Room, word string) []string {
	if word == "" {
		return nil
	}
	var out []string
	for _, name := range r.Names() {
		if strings.HasPrefix(name, word) {
			out = append(out, name+" ")
		}
	}
	return out
}

func filterPrefix(values []string, word, suffix string) []string {
	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, word) {
			out = append(out, v+suffix)
		}
	}
	return out
}

// subCompleter suppresses the default user-name completion for commands
// whose single argument is one of the fixed Sub values. The Sub values
// themselves are offered by the generic first-argument path.
func subCompleter(r *Room, s *Session, args []string, word string) []string {
	return nil
}

// keySetCompleter completes /oplist and /whitelist arguments: user names
// after add/remove, file paths after load, then the load mode.
func keySetCompleter(r *Room, s *Session, args []string, word string) []string {
	switch len(args) {
	case 1:
		switch args[0] {
		case "add", "remove":
			return memberNames(r, word)
		case "load":
			return filePaths(word)
		}
	case 2:
		if args[0] == "load" {
			return filterPrefix([]string{"merge", "replace"}, word, " ")
		}
	}
	return nil
}

// filePaths completes a filesystem path one component at a time.
func filePaths(word string) []string {
	dir, base := filepath.Split(word)
	scan := dir
	if scan == "" {
		scan = "."
	}
	entries, err := os.ReadDir(scan)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), base) {
			continue
		}
		if e.IsDir() {
			out = append(out, dir+e.Name()+"/")
		} else {
			out = append(out, dir+e.Name()+" ")
		}
	}
	return out
}

package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mevdschee/chatd/internal/auth"
	"github.com/mevdschee/chatd/internal/message"
	"github.com/mevdschee/chatd/internal/theme"
	"github.com/mevdschee/chatd/internal/user"
)

// Command describes one slash command. New commands are added as table
// entries, not types.
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Help    string
	OpOnly  bool
	// Sub lists fixed subcommand or enum-value completions for the second
	// word, when the command has any.
	Sub []string
	// Run handles the command. args is the whitespace-split argument list
	// and tail the raw text after the command name, for commands with a
	// free-form trailing argument.
	Run func(r *Room, s *Session, args []string, tail string) error
	// Complete returns candidates for the argument word being completed.
	// args holds the completed argument words before it. Nil means user
	// names.
	Complete func(r *Room, s *Session, args []string, word string) []string
}

var commands []*Command
var commandIndex map[string]*Command

func register(c *Command) {
	commands = append(commands, c)
	commandIndex[c.Name] = c
	for _, a := range c.Aliases {
		commandIndex[a] = c
	}
}

// Dispatch parses one submitted "/..." line and runs the matching
// command. Failures never propagate beyond the issuing session: they are
// delivered as error events.
func Dispatch(r *Room, s *Session, line string) {
	name, tail, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	name = strings.ToLower(name)
	tail = strings.TrimSpace(tail)

	cmd, ok := commandIndex[name]
	if !ok {
		s.Enqueue(message.NewError("unknown command: /" + name))
		return
	}
	if cmd.OpOnly && !s.User.IsOp() {
		s.Enqueue(message.NewError("permission denied"))
		return
	}
	if err := cmd.Run(r, s, strings.Fields(tail), tail); err != nil {
		s.Enqueue(message.NewError(err.Error()))
	}
}

func usageErr(cmd *Command) error {
	return fmt.Errorf("usage: /%s %s", cmd.Name, cmd.Usage)
}

func init() {
	commandIndex = make(map[string]*Command)

	register(&Command{
		Name: "help",
		Help: "list available commands",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			var b strings.Builder
			b.WriteString("available commands:\r\n")
			for _, c := range commands {
				if c.OpOnly && !s.User.IsOp() {
					continue
				}
				fmt.Fprintf(&b, "  /%-10s %-24s %s\r\n", c.Name, c.Usage, c.Help)
			}
			s.Enqueue(message.NewSystem(strings.TrimSuffix(b.String(), "\r\n")))
			return nil
		},
	})

	register(&Command{
		Name:  "nick",
		Usage: "NAME",
		Help:  "change your display name",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) != 1 {
				return usageErr(commandIndex["nick"])
			}
			r.Rename(s.User.Fingerprint, args[0])
			return nil
		},
	})

	register(&Command{
		Name: "names",
		Help: "list connected users",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			names := r.Names()
			s.Enqueue(message.NewSystem(fmt.Sprintf("%d connected: %s", len(names), strings.Join(names, ", "))))
			return nil
		},
	})

	register(&Command{
		Name:  "me",
		Usage: "TEXT",
		Help:  "send an action message",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if tail == "" {
				return usageErr(commandIndex["me"])
			}
			r.SendEmote(s.User.Fingerprint, tail)
			return nil
		},
	})

	register(&Command{
		Name:  "msg",
		Usage: "USER TEXT",
		Help:  "send a private message",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			target, text, ok := strings.Cut(tail, " ")
			text = strings.TrimSpace(text)
			if !ok || target == "" || text == "" {
				return usageErr(commandIndex["msg"])
			}
			r.SendPrivate(s.User.Fingerprint, target, text)
			return nil
		},
	})

	register(&Command{
		Name:  "reply",
		Usage: "TEXT",
		Help:  "reply to the last private message",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if tail == "" {
				return usageErr(commandIndex["reply"])
			}
			fp := s.User.ReplyTo()
			if fp == "" {
				return fmt.Errorf("no one to reply to")
			}
			target, ok := r.LookupFp(fp)
			if !ok {
				return fmt.Errorf("they are no longer connected")
			}
			r.SendPrivate(s.User.Fingerprint, target.User.Name(), tail)
			return nil
		},
	})

	register(&Command{
		Name: "quiet",
		Help: "toggle quiet mode",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			p := s.User.Prefs()
			p.Quiet = !p.Quiet
			s.User.SetPrefs(p)
			if p.Quiet {
				s.Enqueue(message.NewSystem("quiet mode enabled"))
			} else {
				s.Enqueue(message.NewSystem("quiet mode disabled"))
			}
			return nil
		},
	})

	register(&Command{
		Name:  "theme",
		Usage: "NAME",
		Help:  "set your theme, or list themes",
		Sub:   append(theme.Names(), "list"),
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) != 1 {
				return usageErr(commandIndex["theme"])
			}
			if args[0] == "list" {
				s.Enqueue(message.NewSystem("themes: " + strings.Join(theme.Names(), ", ")))
				return nil
			}
			if _, ok := theme.Named(args[0]); !ok {
				return fmt.Errorf("unknown theme: %s", args[0])
			}
			p := s.User.Prefs()
			p.Theme = args[0]
			s.User.SetPrefs(p)
			s.Enqueue(message.NewSystem("theme set to " + args[0]))
			return nil
		},
		Complete: subCompleter,
	})

	register(&Command{
		Name:  "timestamp",
		Usage: "off|time|datetime",
		Help:  "set message timestamp display",
		Sub:   []string{"off", "time", "datetime"},
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) != 1 {
				return usageErr(commandIndex["timestamp"])
			}
			mode, ok := user.ParseTimestampMode(args[0])
			if !ok {
				return fmt.Errorf("invalid mode: %s (off, time or datetime)", args[0])
			}
			p := s.User.Prefs()
			p.Timestamp = mode
			s.User.SetPrefs(p)
			s.Enqueue(message.NewSystem("timestamps: " + args[0]))
			return nil
		},
		Complete: subCompleter,
	})

	register(&Command{
		Name:  "ignore",
		Usage: "[USER]",
		Help:  "hide a user's messages, or list ignored users",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) == 0 {
				ignored := s.User.Ignored()
				if len(ignored) == 0 {
					s.Enqueue(message.NewSystem("you are not ignoring anyone"))
					return nil
				}
				names := make([]string, 0, len(ignored))
				for _, fp := range ignored {
					if m, ok := r.LookupFp(fp); ok {
						names = append(names, m.User.Name())
					} else {
						names = append(names, fp)
					}
				}
				sort.Strings(names)
				s.Enqueue(message.NewSystem("ignoring: " + strings.Join(names, ", ")))
				return nil
			}
			target, ok := r.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown user: %s", args[0])
			}
			if target.User.Fingerprint == s.User.Fingerprint {
				return fmt.Errorf("cannot ignore yourself")
			}
			s.User.Ignore(target.User.Fingerprint)
			s.Enqueue(message.NewSystem("ignoring " + args[0]))
			return nil
		},
	})

	register(&Command{
		Name:  "unignore",
		Usage: "USER",
		Help:  "stop ignoring a user",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) != 1 {
				return usageErr(commandIndex["unignore"])
			}
			target, ok := r.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown user: %s", args[0])
			}
			s.User.Unignore(target.User.Fingerprint)
			s.Enqueue(message.NewSystem("no longer ignoring " + args[0]))
			return nil
		},
	})

	register(&Command{
		Name:  "focus",
		Usage: "[USER|$]",
		Help:  "only show messages from focused users ($ clears)",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) == 0 {
				focused := s.User.Focused()
				if len(focused) == 0 {
					s.Enqueue(message.NewSystem("focusing all users"))
					return nil
				}
				names := make([]string, 0, len(focused))
				for _, fp := range focused {
					if m, ok := r.LookupFp(fp); ok {
						names = append(names, m.User.Name())
					}
				}
				sort.Strings(names)
				s.Enqueue(message.NewSystem("focusing: " + strings.Join(names, ", ")))
				return nil
			}
			if args[0] == "$" {
				s.User.ClearFocus()
				s.Enqueue(message.NewSystem("focus cleared"))
				return nil
			}
			target, ok := r.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown user: %s", args[0])
			}
			s.User.Focus(target.User.Fingerprint)
			s.Enqueue(message.NewSystem("focusing " + args[0]))
			return nil
		},
	})

	register(&Command{
		Name:  "whois",
		Usage: "USER",
		Help:  "show a user's fingerprint and join time",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) != 1 {
				return usageErr(commandIndex["whois"])
			}
			target, ok := r.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown user: %s", args[0])
			}
			u := target.User
			info := fmt.Sprintf("%s: fingerprint %s, joined %s ago",
				u.Name(), u.Fingerprint, time.Since(u.JoinedAt).Round(time.Second))
			if away, reason := u.Away(); away {
				info += ", away"
				if reason != "" {
					info += ": " + reason
				}
			}
			s.Enqueue(message.NewSystem(info))
			return nil
		},
	})

	register(&Command{
		Name: "motd",
		Help: "print the message of the day",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			s.Enqueue(message.NewSystem(r.Motd()))
			return nil
		},
	})

	register(&Command{
		Name:  "away",
		Usage: "[MSG]",
		Help:  "mark yourself away",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			s.User.SetAway(tail)
			if tail == "" {
				r.Announce(s.User.Name() + " has gone away")
			} else {
				r.Announce(s.User.Name() + " has gone away: " + tail)
			}
			return nil
		},
	})

	register(&Command{
		Name: "back",
		Help: "clear your away status",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if away, _ := s.User.Away(); away {
				s.User.SetBack()
				r.Announce(s.User.Name() + " is back")
			}
			return nil
		},
	})

	register(&Command{
		Name: "uptime",
		Help: "show how long the room has been up",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			s.Enqueue(message.NewSystem("up " + r.Uptime().String()))
			return nil
		},
	})

	register(&Command{
		Name:    "quit",
		Aliases: []string{"exit"},
		Help:    "leave the chat",
		Run: func(r *Room, s *Session, args []string, tail string) error {
			s.Close("goodbye")
			return nil
		},
	})

	register(&Command{
		Name:   "mute",
		Usage:  "USER",
		Help:   "toggle a user's ability to send messages",
		OpOnly: true,
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) != 1 {
				return usageErr(commandIndex["mute"])
			}
			muted, err := r.Mute(args[0])
			if err != nil {
				return err
			}
			if muted {
				s.Enqueue(message.NewSystem("muted " + args[0]))
			} else {
				s.Enqueue(message.NewSystem("unmuted " + args[0]))
			}
			return nil
		},
	})

	register(&Command{
		Name:   "kick",
		Usage:  "USER",
		Help:   "disconnect a user",
		OpOnly: true,
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) != 1 {
				return usageErr(commandIndex["kick"])
			}
			return r.Kick(args[0], "you have been kicked")
		},
	})

	register(&Command{
		Name:   "ban",
		Usage:  "USER [DURATION]",
		Help:   "kick a user and ban their key (e.g. 1h, 30m)",
		OpOnly: true,
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) < 1 || len(args) > 2 {
				return usageErr(commandIndex["ban"])
			}
			var d time.Duration
			if len(args) == 2 {
				var err error
				d, err = time.ParseDuration(args[1])
				if err != nil {
					return fmt.Errorf("invalid duration: %s", args[1])
				}
			}
			return r.BanMember(args[0], d)
		},
	})

	register(&Command{
		Name:   "banlist",
		Help:   "list active bans",
		OpOnly: true,
		Run: func(r *Room, s *Session, args []string, tail string) error {
			bans := r.Auth().Bans()
			if len(bans) == 0 {
				s.Enqueue(message.NewSystem("no active bans"))
				return nil
			}
			var b strings.Builder
			b.WriteString("active bans:\r\n")
			for _, ban := range bans {
				if ban.Until.IsZero() {
					fmt.Fprintf(&b, "  %s (permanent)\r\n", ban.Fingerprint)
				} else {
					fmt.Fprintf(&b, "  %s (until %s)\r\n", ban.Fingerprint, ban.Until.Format(time.RFC3339))
				}
			}
			s.Enqueue(message.NewSystem(strings.TrimSuffix(b.String(), "\r\n")))
			return nil
		},
	})

	register(&Command{
		Name:     "oplist",
		Usage:    "add USER | remove USER | load FILE merge|replace",
		Help:     "manage the operator list",
		OpOnly:   true,
		Sub:      []string{"add", "remove", "load"},
		Complete: keySetCompleter,
		Run: func(r *Room, s *Session, args []string, tail string) error {
			err := runKeySetCommand(r, s, commandIndex["oplist"], r.Auth().Ops, args, func(fp string, added bool) {
				if target, ok := r.LookupFp(fp); ok {
					target.User.SetOp(added)
				}
			})
			// A load can grant or revoke in bulk; refresh every live
			// member's operator flag from the new set.
			if err == nil && len(args) > 0 && args[0] == "load" {
				r.SyncOps()
			}
			return err
		},
	})

	register(&Command{
		Name:     "whitelist",
		Usage:    "add USER | remove USER | load FILE merge|replace | on | off",
		Help:     "manage the join whitelist",
		OpOnly:   true,
		Sub:      []string{"add", "remove", "load", "on", "off"},
		Complete: keySetCompleter,
		Run: func(r *Room, s *Session, args []string, tail string) error {
			if len(args) == 1 {
				switch args[0] {
				case "on":
					r.Auth().SetWhitelistMode(true)
					s.Enqueue(message.NewSystem("whitelist enabled"))
					return nil
				case "off":
					r.Auth().SetWhitelistMode(false)
					s.Enqueue(message.NewSystem("whitelist disabled"))
					return nil
				}
			}
			return runKeySetCommand(r, s, commandIndex["whitelist"], r.Auth().Whitelist, args, nil)
		},
	})
}

// runKeySetCommand implements the shared add/remove/load grammar of
// /oplist and /whitelist. changed, when non-nil, is invoked for every
// fingerprint added or removed so live sessions pick up the change.
func runKeySetCommand(r *Room, s *Session, cmd *Command, ks *auth.KeySet, args []string, changed func(fp string, added bool)) error {
	if len(args) < 2 {
		return usageErr(cmd)
	}
	switch args[0] {
	case "add", "remove":
		target, ok := r.Lookup(args[1])
		if !ok {
			return fmt.Errorf("unknown user: %s", args[1])
		}
		fp := target.User.Fingerprint
		if args[0] == "add" {
			ks.Add(fp)
		} else {
			ks.Remove(fp)
		}
		if changed != nil {
			changed(fp, args[0] == "add")
		}
		s.Enqueue(message.NewSystem(fmt.Sprintf("%s: %sed %s", cmd.Name, args[0], args[1])))
		return nil
	case "load":
		if len(args) != 3 || (args[2] != "merge" && args[2] != "replace") {
			return usageErr(cmd)
		}
		n, err := ks.LoadFile(args[1], args[2] == "replace")
		if err != nil {
			return fmt.Errorf("load failed: %v", err)
		}
		s.Enqueue(message.NewSystem(fmt.Sprintf("%s: loaded %d keys (%s)", cmd.Name, n, args[2])))
		return nil
	}
	return usageErr(cmd)
}

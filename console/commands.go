package console

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/opd-ai/meshchat"
)

// Command is one entry of the dispatch table.
type Command struct {
	// Usage is the argument synopsis shown by help.
	Usage string
	// Summary is a one-line description.
	Summary string
	// Args is the exact number of arguments.
	Args int
	// Tail makes the last argument take the rest of the line.
	Tail bool
	// Quit ends the console after the command runs.
	Quit bool
	// Handler runs on the session's event loop.
	Handler func(s *meshchat.Session, args []string) meshchat.Outcome
}

// commandNames lists the table keys in help order.
var commandNames = []string{
	"help", "online", "friends", "requests", "add", "accept", "reject", "msg",
	"groups", "group-create", "group-invite", "group-accept", "group-reject",
	"group-leave", "group-msg", "queue", "quit",
}

func (c *Console) commandTable() map[string]Command {
	return map[string]Command{
		"help": {
			Summary: "list commands",
			Handler: func(*meshchat.Session, []string) meshchat.Outcome { return ok(c.help()) },
		},
		"online": {
			Summary: "list peers currently online",
			Handler: listOnline,
		},
		"friends": {
			Summary: "list friends",
			Handler: listFriends,
		},
		"requests": {
			Summary: "list friend requests",
			Handler: listRequests,
		},
		"add": {
			Usage:   "<user>",
			Summary: "send a friend request to an online user",
			Args:    1,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.SendFriendRequest(args[0])
			},
		},
		"accept": {
			Usage:   "<user>",
			Summary: "accept a friend request",
			Args:    1,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.AcceptFriendRequest(args[0])
			},
		},
		"reject": {
			Usage:   "<user>",
			Summary: "reject a friend request",
			Args:    1,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.RejectFriendRequest(args[0])
			},
		},
		"msg": {
			Usage:   "<user> <text>",
			Summary: "message a friend",
			Args:    2,
			Tail:    true,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.SendDirectMessage(args[0], args[1])
			},
		},
		"groups": {
			Summary: "list known groups",
			Handler: listGroups,
		},
		"group-create": {
			Usage:   "<name>",
			Summary: "create a group",
			Args:    1,
			Tail:    true,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.CreateGroup(args[0])
			},
		},
		"group-invite": {
			Usage:   "<group> <user>",
			Summary: "invite an online friend to a group",
			Args:    2,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.InviteToGroup(args[0], args[1])
			},
		},
		"group-accept": {
			Usage:   "<group>",
			Summary: "join a group you were invited to",
			Args:    1,
			Tail:    true,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.AcceptGroupInvite(args[0])
			},
		},
		"group-reject": {
			Usage:   "<group>",
			Summary: "decline a group invitation",
			Args:    1,
			Tail:    true,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.RejectGroupInvite(args[0])
			},
		},
		"group-leave": {
			Usage:   "<group>",
			Summary: "leave a group",
			Args:    1,
			Tail:    true,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.LeaveGroup(args[0])
			},
		},
		"group-msg": {
			Usage:   "<group> <text>",
			Summary: "post to a group",
			Args:    2,
			Tail:    true,
			Handler: func(s *meshchat.Session, args []string) meshchat.Outcome {
				return s.SendGroupMessage(args[0], args[1])
			},
		},
		"queue": {
			Summary: "show messages waiting for offline recipients",
			Handler: listQueue,
		},
		"quit": {
			Summary: "exit",
			Quit:    true,
			Handler: func(*meshchat.Session, []string) meshchat.Outcome { return ok("bye") },
		},
	}
}

func (c *Console) help() string {
	var b strings.Builder
	b.WriteString("commands:")
	for _, name := range commandNames {
		cmd := c.commands[name]
		synopsis := name
		if cmd.Usage != "" {
			synopsis += " " + cmd.Usage
		}
		fmt.Fprintf(&b, "\n  %-30s %s", synopsis, cmd.Summary)
	}
	return b.String()
}

// Complete returns the command names starting with line.
func Complete(line string) []string {
	var result []string
	for _, name := range commandNames {
		if strings.HasPrefix(name, line) {
			result = append(result, name)
		}
	}
	return result
}

// parseArgs splits input into exactly n arguments. With tail set the last
// argument is the remainder of the line, inner whitespace included.
func parseArgs(input string, n int, tail bool) ([]string, bool) {
	args := make([]string, 0, n)
	rest := strings.TrimSpace(input)
	for i := 0; i < n; i++ {
		if rest == "" {
			return nil, false
		}
		if tail && i == n-1 {
			return append(args, rest), true
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			end = len(rest)
		}
		args = append(args, rest[:end])
		rest = strings.TrimSpace(rest[end:])
	}
	if rest != "" {
		return nil, false
	}
	return args, true
}

func ok(format string, args ...interface{}) meshchat.Outcome {
	return meshchat.Outcome{Succeeded: true, Detail: fmt.Sprintf(format, args...)}
}

func listOnline(s *meshchat.Session, _ []string) meshchat.Outcome {
	peers := s.OnlinePeers()
	if len(peers) == 0 {
		return ok("nobody else is online")
	}
	lines := make([]string, 0, len(peers))
	for _, p := range peers {
		lines = append(lines, fmt.Sprintf("  %s (%s)", p.DisplayName, p.AccountID))
	}
	return ok("online:\n%s", strings.Join(lines, "\n"))
}

func listFriends(s *meshchat.Session, _ []string) meshchat.Outcome {
	friends := s.Friends()
	if len(friends) == 0 {
		return ok("no friends yet")
	}
	lines := make([]string, 0, len(friends))
	for _, f := range friends {
		status := "offline"
		if s.IsOnline(f.AccountID) {
			status = "online"
		}
		lines = append(lines, fmt.Sprintf("  %s (%s) %s", f.DisplayName, f.AccountID, status))
	}
	return ok("friends:\n%s", strings.Join(lines, "\n"))
}

func listRequests(s *meshchat.Session, _ []string) meshchat.Outcome {
	inbound := s.PendingRequests()
	outbound := s.OutboundRequests()
	if len(inbound) == 0 && len(outbound) == 0 {
		return ok("no friend requests")
	}

	var lines []string
	for _, r := range inbound {
		lines = append(lines, fmt.Sprintf("  from %s (%s)", r.SenderName, r.SenderAccountID))
	}
	for _, r := range outbound {
		lines = append(lines, fmt.Sprintf("  to %s (%s)", r.TargetName, r.TargetAccountID))
	}
	return ok("requests:\n%s", strings.Join(lines, "\n"))
}

func listGroups(s *meshchat.Session, _ []string) meshchat.Outcome {
	groups := s.Groups()
	if len(groups) == 0 {
		return ok("no groups")
	}

	self := s.Self().AccountID
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		role := "member"
		for _, m := range g.Invitations {
			if m.AccountID == self {
				role = "invited"
			}
		}
		names := make([]string, 0, len(g.Participants))
		for _, m := range g.Participants {
			names = append(names, m.DisplayName)
		}
		lines = append(lines, fmt.Sprintf("  %s (%s) %s: %s", g.Name, g.ID, role, strings.Join(names, ", ")))
	}
	return ok("groups:\n%s", strings.Join(lines, "\n"))
}

func listQueue(s *meshchat.Session, _ []string) meshchat.Outcome {
	recipients := s.QueuedRecipients()
	if len(recipients) == 0 {
		return ok("queue is empty")
	}
	sort.Strings(recipients)
	lines := make([]string, 0, len(recipients))
	for _, r := range recipients {
		lines = append(lines, fmt.Sprintf("  %s: %d", r, s.QueueDepth(r)))
	}
	return ok("queued:\n%s", strings.Join(lines, "\n"))
}

package command

import (
	"fmt"
	"strconv"
	"strings"

	"ionic/internal/broadcast"
	"ionic/internal/protocol"
	"ionic/internal/text"
)

// Inventory window constants for the inv command.
const (
	InventoryWindowID   = 1
	InventoryWindowType = 2 // generic_9x3
	InventorySlots      = 27
)

// Builtins returns the default command set.
func Builtins() []Command {
	return []Command{
		{Name: "say", Usage: "say <message>", Description: "Broadcast a message", Run: say},
		{Name: "list", Usage: "list", Description: "List online players", Run: list},
		{Name: "time", Usage: "time [set <day|noon|night|midnight|ticks>]", Description: "Query or set the time of day", Run: timeCmd,
			Complete: func(_ *Env, args string) []string {
				if !strings.Contains(args, " ") {
					return prefixed([]string{"query", "set"}, args)
				}
				_, v, _ := strings.Cut(args, " ")
				return prefixed([]string{"day", "midnight", "night", "noon"}, v)
			}},
		{Name: "kick", Usage: "kick <player> [reason]", Description: "Disconnect a player", Run: kick,
			Complete: func(env *Env, args string) []string {
				if strings.Contains(args, " ") {
					return nil
				}
				var names []string
				for _, c := range env.Conns.Playing() {
					names = append(names, c.Username())
				}
				return prefixed(names, args)
			}},
		{Name: "inv", Usage: "inv", Description: "Open a chest inventory", Run: inv},
		{Name: "help", Usage: "help", Description: "List commands", Run: help},
	}
}

// NewDefaultRegistry returns a registry holding Builtins.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(Builtins()...)
	return r
}

func prefixed(options []string, prefix string) []string {
	var out []string
	for _, o := range options {
		if strings.HasPrefix(strings.ToLower(o), strings.ToLower(prefix)) {
			out = append(out, o)
		}
	}
	return out
}

// SayLine formats a say message as "<name> message".
func SayLine(name, message string) string {
	return fmt.Sprintf("<%s> %s", name, message)
}

func say(env *Env, sender Sender, args string) error {
	if args == "" {
		return fmt.Errorf("%w: say <message>", ErrUsage)
	}
	name, err := env.SenderName(sender)
	if err != nil {
		return err
	}
	env.Broadcast.Broadcast(text.Plain(SayLine(name, args)), false)
	return nil
}

func list(env *Env, sender Sender, _ string) error {
	players := env.Conns.Playing()
	names := make([]string, 0, len(players))
	for _, c := range players {
		names = append(names, c.Username())
	}
	msg := fmt.Sprintf("There are %d players online", len(names))
	if len(names) > 0 {
		msg += ": " + strings.Join(names, ", ")
	}
	env.Reply(sender, text.Plain(msg))
	return nil
}

var namedTimes = map[string]int64{
	"day":      1000,
	"noon":     6000,
	"night":    13000,
	"midnight": 18000,
}

func timeCmd(env *Env, sender Sender, args string) error {
	sub, value, _ := strings.Cut(args, " ")
	switch sub {
	case "", "query":
		env.Reply(sender, text.Plain(fmt.Sprintf("The time is %d", env.World.TimeOfDay())))
		return nil
	case "set":
	default:
		return fmt.Errorf("%w: time [set <value>]", ErrUsage)
	}

	t, ok := namedTimes[strings.TrimSpace(value)]
	if !ok {
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: invalid time %q", ErrUsage, value)
		}
		t = n
	}
	env.World.SetTimeOfDay(t)
	env.Broadcast.Enqueue(broadcast.Message{Packet: &protocol.SetTime{
		WorldAge:  env.World.Age(),
		TimeOfDay: env.World.TimeOfDay(),
	}})
	env.Reply(sender, text.Plain(fmt.Sprintf("Set the time to %d", env.World.TimeOfDay())))
	return nil
}

func kick(env *Env, sender Sender, args string) error {
	name, reason, _ := strings.Cut(args, " ")
	if name == "" {
		return fmt.Errorf("%w: kick <player> [reason]", ErrUsage)
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "Kicked by an operator"
	}
	c, ok := env.Conns.FindByName(name)
	if !ok {
		env.Reply(sender, text.Colored("No player was found", "red"))
		return nil
	}
	if err := c.Disconnect(&protocol.Disconnect{Reason: text.Plain(reason)}, "kicked"); err != nil {
		env.Log.Debug().Err(err).Str("player", name).Msg("kick disconnect failed")
	}
	env.Reply(sender, text.Plain(fmt.Sprintf("Kicked %s: %s", name, reason)))
	return nil
}

func inv(env *Env, sender Sender, _ string) error {
	c, err := env.SenderConn(sender)
	if err != nil {
		return err
	}
	slots := make([]protocol.Slot, InventorySlots)
	slots[0] = protocol.Slot{Count: 64, ItemID: 1}
	slots[13] = protocol.Slot{Count: 1, ItemID: 1}

	if err := c.QueuePacket(&protocol.OpenScreen{
		WindowID:   InventoryWindowID,
		WindowType: InventoryWindowType,
		Title:      text.Plain("Inventory"),
	}); err != nil {
		return err
	}
	if err := c.QueuePacket(&protocol.ContainerSetContent{
		WindowID: InventoryWindowID,
		StateID:  1,
		Slots:    slots,
	}); err != nil {
		return err
	}
	c.OpenWindow(InventoryWindowID)
	return nil
}

func help(env *Env, sender Sender, _ string) error {
	if env.Commands == nil {
		return nil
	}
	for _, c := range env.Commands.Commands() {
		line := text.Colored("/"+c.Usage, "gold").Append(text.Plain(" - " + c.Description))
		env.Reply(sender, line)
	}
	return nil
}

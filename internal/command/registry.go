package command

import (
	"fmt"
	"sort"
	"strings"
)

// Func runs a command. args is everything after the name, taken as one
// greedy string.
type Func func(env *Env, sender Sender, args string) error

// Command is a registered command.
type Command struct {
	Name        string
	Usage       string
	Description string
	Run         Func
	// Complete returns argument suggestions for the partial args.
	Complete func(env *Env, args string) []string
}

// Registry maps names to commands. It is filled at startup and read-only
// afterwards.
type Registry struct {
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds c. Names are case-insensitive and unique.
func (r *Registry) Register(c Command) error {
	name := strings.ToLower(c.Name)
	if name == "" || strings.ContainsAny(name, " /") {
		return fmt.Errorf("command: invalid name %q", c.Name)
	}
	if c.Run == nil {
		return fmt.Errorf("command: %s has no Run", name)
	}
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	c.Name = name
	r.commands[name] = c
	return nil
}

// MustRegister registers every command and panics on the first error.
func (r *Registry) MustRegister(cs ...Command) {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Lookup finds a command by name.
func (r *Registry) Lookup(name string) (Command, bool) {
	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// Commands returns every command sorted by name.
func (r *Registry) Commands() []Command {
	out := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Split separates a command line into its name and greedy argument string.
func Split(line string) (name, args string) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "/")
	name, args, _ = strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}

// Execute runs line for sender.
func (r *Registry) Execute(env *Env, sender Sender, line string) error {
	name, args := Split(line)
	c, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return c.Run(env, sender, args)
}

// Suggest completes a partial command line. start and length locate the
// replaced range within input, which may begin with a slash.
func (r *Registry) Suggest(env *Env, input string) (start, length int, matches []string) {
	offset := 0
	if strings.HasPrefix(input, "/") {
		offset = 1
	}
	line := input[offset:]

	name, args, hasArgs := strings.Cut(line, " ")
	if !hasArgs {
		for _, c := range r.Commands() {
			if strings.HasPrefix(c.Name, strings.ToLower(name)) {
				matches = append(matches, c.Name)
			}
		}
		return offset, len(name), matches
	}

	c, ok := r.Lookup(name)
	if !ok || c.Complete == nil {
		return 0, 0, nil
	}
	// Complete the last argument word.
	last := strings.LastIndex(args, " ") + 1
	start = offset + len(name) + 1 + last
	return start, len(args) - last, c.Complete(env, args)
}

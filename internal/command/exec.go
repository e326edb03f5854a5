package command

import (
	"errors"

	"ionic/internal/observability"
	"ionic/internal/text"
)

// Run executes inv and reports failures back to its sender.
func (r *Registry) Run(env *Env, inv Invocation) error {
	err := r.Execute(env, inv.Sender, inv.Line)
	switch {
	case err == nil:
		observability.RecordCommand("ok")
		return nil
	case errors.Is(err, ErrUnknownCommand):
		observability.RecordCommand("unknown")
		env.Reply(inv.Sender, text.Colored("Unknown command. Type /help for help.", "red"))
	case errors.Is(err, ErrSenderGone):
		observability.RecordCommand("error")
		return err
	default:
		observability.RecordCommand("error")
		env.Reply(inv.Sender, text.Colored(err.Error(), "red"))
	}
	env.Log.Debug().Err(err).Str("sender", inv.Sender.String()).Str("line", inv.Line).Msg("command failed")
	return err
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/m3rciful/ticketbot/core/logger"
)

// DefaultExecTimeout bounds handler execution when no timeout is configured.
const DefaultExecTimeout = 30 * time.Second

// Outcome is the terminal state of one dispatch.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeUsage
	OutcomePermissionDenied
	OutcomeStaffOnlyDenied
	OutcomeExecuted
	OutcomeExecutionError
	OutcomeRateLimited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeUsage:
		return "usage"
	case OutcomePermissionDenied:
		return "permission_denied"
	case OutcomeStaffOnlyDenied:
		return "staff_only_denied"
	case OutcomeExecuted:
		return "executed"
	case OutcomeExecutionError:
		return "execution_error"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Result reports what happened to a message.
type Result struct {
	Outcome Outcome
	Command *Descriptor
	Token   string
}

// DispatcherOptions wires a Dispatcher to its collaborators.
type DispatcherOptions struct {
	Registry   *Registry
	Settings   SettingsProvider
	Localizer  Localizer
	Categories CategoryProvider

	ExecTimeout time.Duration
	// Logger defaults to logger.CMD.
	Logger *slog.Logger
}

// Dispatcher routes inbound messages to registered commands.
type Dispatcher struct {
	registry  *Registry
	settings  SettingsProvider
	localizer Localizer
	access    AccessController
	timeout   time.Duration
	log       *slog.Logger
}

// NewDispatcher validates opts and returns a Dispatcher.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Registry == nil {
		return nil, errors.New("commands: dispatcher requires a registry")
	}
	if opts.Settings == nil {
		return nil, errors.New("commands: dispatcher requires a settings provider")
	}
	timeout := opts.ExecTimeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	return &Dispatcher{
		registry:  opts.Registry,
		settings:  opts.Settings,
		localizer: opts.Localizer,
		access:    AccessController{Categories: opts.Categories},
		timeout:   timeout,
		log:       opts.Logger,
	}, nil
}

// Registry returns the registry the dispatcher routes to.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch processes one message. Handler failures are logged and answered with a
// generic notice; they are never returned. Errors are returned only when guild
// settings or access information cannot be resolved.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (Result, error) {
	settings, err := d.resolveSettings(ctx, msg.GuildID)
	if err != nil {
		return Result{}, err
	}

	token, rawArgs, ok := MatchPrefix(msg.Content, settings.CommandPrefix)
	if !ok {
		return Result{Outcome: OutcomeIgnored}, nil
	}
	return d.run(ctx, msg, settings, token, rawArgs)
}

// DispatchToken processes a command the platform already split into token and
// arguments, such as a Telegram bot command. Prefix matching is skipped; every
// later stage behaves as in Dispatch.
func (d *Dispatcher) DispatchToken(ctx context.Context, msg Message, token, rawArgs string) (Result, error) {
	settings, err := d.resolveSettings(ctx, msg.GuildID)
	if err != nil {
		return Result{}, err
	}
	return d.run(ctx, msg, settings, token, strings.TrimSpace(rawArgs))
}

func (d *Dispatcher) run(ctx context.Context, msg Message, settings Settings, token, rawArgs string) (Result, error) {
	cmd, ok := d.registry.Lookup(token)
	if !ok {
		return Result{Outcome: OutcomeIgnored, Token: token}, nil
	}

	ctx = logger.WithHandler(ctx, "command."+cmd.Name)
	res := Result{Command: cmd, Token: token}
	if msg.Admit != nil && !msg.Admit(cmd) {
		logger.LogEvent(ctx, d.logger(), slog.LevelInfo, "command.rate_limited",
			slog.String("command", cmd.Name),
			slog.String("outcome", "rate_limited"),
		)
		res.Outcome = OutcomeRateLimited
		return res, nil
	}
	inv := &Invocation{
		Message:  msg,
		Settings: settings,
		Command:  cmd,
		Token:    token,
		RawArgs:  rawArgs,
		Args:     Args{Raw: rawArgs},
		T:        d.translator(settings.Locale),
	}
	format := inv.Formatter()

	if !d.acquireArgs(ctx, inv) {
		d.reply(ctx, msg, format.Usage(cmd, token), "usage")
		res.Outcome = OutcomeUsage
		return res, nil
	}

	missing, err := d.access.MissingPermissions(ctx, msg.Author, cmd.Permissions)
	if err != nil {
		return res, err
	}
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, p := range missing {
			names[i] = string(p)
		}
		d.logDenied(ctx, cmd, "permissions", slog.String("missing", strings.Join(names, ",")))
		d.reply(ctx, msg, format.MissingPermissions(missing), "missing_perms")
		res.Outcome = OutcomePermissionDenied
		return res, nil
	}

	if cmd.StaffOnly {
		staff, err := d.access.IsStaff(ctx, msg.GuildID, msg.Author)
		if err != nil {
			return res, err
		}
		if !staff {
			d.logDenied(ctx, cmd, "staff_only")
			d.reply(ctx, msg, format.StaffOnly(), "staff_only")
			res.Outcome = OutcomeStaffOnlyDenied
			return res, nil
		}
	}

	logger.LogEvent(ctx, d.logger(), slog.LevelInfo, "command.executing",
		slog.String("command", cmd.Name),
		slog.String("token", token),
		slog.String("invoked_by", msg.Author.Tag),
	)
	start := time.Now()
	if err := d.execute(ctx, inv); err != nil {
		attrs := []slog.Attr{
			slog.String("command", cmd.Name),
			slog.String("outcome", "fail"),
			slog.String("cause", logger.SanitizeLimit(err.Error(), 512)),
			slog.String("err_code", errorCode(err)),
			slog.Duration("duration", logger.Took(start)),
		}
		var pe *PanicError
		if errors.As(err, &pe) {
			attrs = append(attrs, slog.String("stack", string(pe.Stack)))
		}
		logger.LogEvent(ctx, d.logger(), slog.LevelError, "command.failed", attrs...)
		d.reply(ctx, msg, format.ExecutionError(), "command_execution_error")
		res.Outcome = OutcomeExecutionError
		return res, nil
	}

	logger.LogEvent(ctx, d.logger(), slog.LevelInfo, "command.executed",
		slog.String("command", cmd.Name),
		slog.String("outcome", "ok"),
		slog.Duration("duration", logger.Took(start)),
	)
	res.Outcome = OutcomeExecuted
	return res, nil
}

func (d *Dispatcher) resolveSettings(ctx context.Context, guildID string) (Settings, error) {
	s, ok, err := d.settings.Get(ctx, guildID)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrSettingsUnavailable, err)
	}
	if ok {
		return s, nil
	}
	s, err = d.settings.Create(ctx, guildID)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: create: %w", ErrSettingsUnavailable, err)
	}
	return s, nil
}

// acquireArgs parses and validates arguments according to the command's mode.
func (d *Dispatcher) acquireArgs(ctx context.Context, inv *Invocation) bool {
	cmd := inv.Command
	switch cmd.Mode {
	case ModeNamed:
		named := ParseNamed(inv.RawArgs)
		inv.Args.Named = named
		if missing := ValidateNamed(cmd.Args, named); len(missing) > 0 {
			logger.LogEvent(ctx, d.logger(), slog.LevelInfo, "command.usage",
				slog.String("command", cmd.Name),
				slog.String("outcome", "usage"),
				slog.String("missing", strings.Join(missing, ",")),
			)
			return false
		}
	default:
		if have, need, ok := ValidatePositional(cmd, inv.RawArgs); !ok {
			logger.LogEvent(ctx, d.logger(), slog.LevelInfo, "command.usage",
				slog.String("command", cmd.Name),
				slog.String("outcome", "usage"),
				slog.Int("count", have),
				slog.Int("required", need),
			)
			return false
		}
	}
	return true
}

// execute runs the handler under a recover boundary and the execution timeout.
func (d *Dispatcher) execute(ctx context.Context, inv *Invocation) error {
	execCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		done <- inv.Command.Execute(execCtx, inv)
	}()

	select {
	case err := <-done:
		return err
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrExecutionTimeout, d.timeout)
		}
		return execCtx.Err()
	}
}

func (d *Dispatcher) reply(ctx context.Context, msg Message, p Payload, kind string) {
	if msg.Channel == nil {
		return
	}
	// Responses outlive a cancelled dispatch context so the actor still gets an answer.
	sendCtx := context.WithoutCancel(ctx)
	if err := msg.Channel.Send(sendCtx, p); err != nil {
		logger.LogEvent(ctx, d.logger(), slog.LevelWarn, "response.send_failed",
			slog.String("payload", kind),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func (d *Dispatcher) logDenied(ctx context.Context, cmd *Descriptor, reason string, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("command", cmd.Name),
		slog.String("outcome", "denied"),
		slog.String("reason", reason),
	}, extra...)
	logger.LogEvent(ctx, d.logger(), slog.LevelInfo, "command.denied", attrs...)
}

func (d *Dispatcher) translator(locale string) Translator {
	if d.localizer == nil {
		return KeyTranslator
	}
	if t := d.localizer.Resolve(locale); t != nil {
		return t
	}
	return KeyTranslator
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.log != nil {
		return d.log
	}
	return logger.CMD
}

func errorCode(err error) string {
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	if errors.Is(err, ErrExecutionTimeout) {
		return "TIMEOUT"
	}
	return "HANDLER_ERROR"
}

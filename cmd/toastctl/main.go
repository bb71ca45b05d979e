// Package main provides toastctl, a command line producer for toastd.
//
// Usage:
//
//	toastctl send [-kind info] [-title T] [-duration 5s] [-persistent] message...
//	toastctl dead-letters [-n 10] [-clear]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aranya-one/toastd/internal/config"
	"github.com/aranya-one/toastd/internal/domain/event"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	commandTimeout = 10 * time.Second
	sourceName     = "toastctl"
)

var errUsage = errors.New("usage: toastctl send|dead-letters [flags]")

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := run(os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error("toastctl failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "send":
		draft, err := parseSend(args[1:])
		if err != nil {
			return err
		}
		return withRedis(logger, func(ctx context.Context, client *redis.Client, cfg *config.Config) error {
			return send(ctx, client, cfg.EventBus.RedisChannelPrefix, draft, out, logger)
		})

	case "dead-letters":
		opts, err := parseDeadLetters(args[1:])
		if err != nil {
			return err
		}
		return withRedis(logger, func(ctx context.Context, client *redis.Client, _ *config.Config) error {
			return deadLetters(ctx, eventbus.NewDeadLetterHandler(client, eventbus.WithDeadLetterLogger(logger)), opts, out)
		})

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// parseSend turns the send flags into a draft. Flags left unset stay nil so the
// queue applies its own defaults.
func parseSend(args []string) (notification.Draft, error) {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	kind := fs.String("kind", "", "notification kind: success, error, warning or info")
	title := fs.String("title", "", "optional title")
	duration := fs.Duration("duration", 0, "display duration, e.g. 3s (default: server setting)")
	persistent := fs.Bool("persistent", false, "keep the notification until dismissed")
	sound := fs.String("sound", "", "override sound: on or off")
	haptic := fs.String("haptic", "", "override haptics: on or off")
	actionLabel := fs.String("action-label", "", "label of the action button")
	actionEvent := fs.String("action-event", "", "event name published when the action is invoked")

	if err := fs.Parse(args); err != nil {
		return notification.Draft{}, fmt.Errorf("invalid flags: %w", err)
	}

	parsedKind, err := notification.ParseKind(*kind)
	if err != nil {
		return notification.Draft{}, err
	}

	draft := notification.Draft{
		Kind:    parsedKind,
		Title:   *title,
		Message: strings.Join(fs.Args(), " "),
	}
	if strings.TrimSpace(draft.Message) == "" {
		return notification.Draft{}, errors.New("message is required")
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "duration" {
			draft = draft.WithDuration(*duration)
		}
	})
	if *persistent {
		draft = draft.Persistent()
	}

	if draft.PlaySound, err = parseSwitch("sound", *sound); err != nil {
		return notification.Draft{}, err
	}
	if draft.PlayHaptic, err = parseSwitch("haptic", *haptic); err != nil {
		return notification.Draft{}, err
	}

	if *actionLabel != "" || *actionEvent != "" {
		if *actionLabel == "" {
			return notification.Draft{}, errors.New("action-label is required with action-event")
		}
		draft = draft.WithAction(notification.Action{Label: *actionLabel, Event: *actionEvent})
	}

	return draft, nil
}

func parseSwitch(name, value string) (*bool, error) {
	switch strings.ToLower(value) {
	case "":
		return nil, nil
	case "on", "true", "1":
		v := true
		return &v, nil
	case "off", "false", "0":
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("invalid %s value %q: must be on or off", name, value)
	}
}

type deadLetterOptions struct {
	count int64
	clear bool
}

func parseDeadLetters(args []string) (deadLetterOptions, error) {
	fs := flag.NewFlagSet("dead-letters", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	count := fs.Int64("n", 10, "number of entries to print")
	clearAll := fs.Bool("clear", false, "delete all entries after printing")

	if err := fs.Parse(args); err != nil {
		return deadLetterOptions{}, fmt.Errorf("invalid flags: %w", err)
	}
	if *count <= 0 {
		return deadLetterOptions{}, errors.New("n must be positive")
	}

	return deadLetterOptions{count: *count, clear: *clearAll}, nil
}

func withRedis(logger *slog.Logger, fn func(context.Context, *redis.Client, *config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close redis client", slog.String("error", closeErr.Error()))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	return fn(ctx, client, cfg)
}

// send publishes a request event; a running toastd adds the notification.
func send(
	ctx context.Context,
	client *redis.Client,
	prefix string,
	draft notification.Draft,
	out io.Writer,
	logger *slog.Logger,
) error {
	bus := eventbus.NewRedisEventBus(client, eventbus.WithLogger(logger), eventbus.WithChannelPrefix(prefix))

	evt := notification.NewRequested(draft, event.NewMetadata(sourceName, uuid.NewString()))
	if err := bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("failed to publish request: %w", err)
	}

	_, err := fmt.Fprintf(out, "requested %s notification (request %s)\n", evt.Kind, evt.AggregateID())
	return err
}

// DeadLetterStore is the part of the dead letter queue toastctl reads.
type DeadLetterStore interface {
	GetDeadLetters(ctx context.Context, count int64) ([]eventbus.DeadLetterEntry, error)
	ClearDeadLetters(ctx context.Context) error
}

func deadLetters(ctx context.Context, store DeadLetterStore, opts deadLetterOptions, out io.Writer) error {
	entries, err := store.GetDeadLetters(ctx, opts.count)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	for _, entry := range entries {
		if encErr := enc.Encode(entry); encErr != nil {
			return fmt.Errorf("failed to write entry: %w", encErr)
		}
	}

	if opts.clear {
		if clearErr := store.ClearDeadLetters(ctx); clearErr != nil {
			return fmt.Errorf("failed to clear dead letters: %w", clearErr)
		}
	}

	return nil
}

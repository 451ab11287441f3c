package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"

	"github.com/kajih/proto-zmq/pkg/broadcast"
	"github.com/kajih/proto-zmq/pkg/config"
	"github.com/kajih/proto-zmq/pkg/encoding"
	"github.com/kajih/proto-zmq/pkg/logger"
	"github.com/kajih/proto-zmq/pkg/transport"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "0.1.0"

// flag name -> config key
var flagKeys = map[string]string{
	"port":      "port",
	"sender":    "sender",
	"transport": "transport",
	"codec":     "codec",
	"nats-url":  "nats.url",
	"subject":   "nats.subject",
	"log-level": "log_level",
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "proto-zmq",
		Usage:     "Broadcast operator input to every connected subscriber",
		UsageText: "proto-zmq [options]            publish lines read from stdin\n   proto-zmq [options] ADDRESS    subscribe to the publisher at ADDRESS",
		ArgsUsage: "[ADDRESS]",
		Version:   Version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to bind (publisher) or connect to (subscriber)",
				Value:   config.DefaultPort,
			},
			&cli.StringFlag{
				Name:  "sender",
				Usage: "Sender identity stamped on published messages",
				Value: config.DefaultSender,
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Transport backend: zmq, tcp or nats",
				Value: config.DefaultTransport,
			},
			&cli.StringFlag{
				Name:  "codec",
				Usage: "Wire codec: proto or cbor",
				Value: config.DefaultCodec,
			},
			&cli.StringFlag{
				Name:  "nats-url",
				Usage: "NATS server URL (nats transport)",
				Value: config.DefaultNATSURL,
			},
			&cli.StringFlag{
				Name:  "subject",
				Usage: "NATS subject to broadcast on (nats transport)",
				Value: config.DefaultNATSSubject,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, c *cli.Command) error {
	address := c.Args().First()
	role := broadcast.SelectRole(address)

	if err := runRole(ctx, c, role, address); err != nil {
		return fmt.Errorf("%s error: %w", role, err)
	}
	fmt.Fprintf(stdout(c), "%s finished OK\n", role)
	return nil
}

func runRole(ctx context.Context, c *cli.Command, role broadcast.Role, address string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	codec, err := encoding.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	factory, err := transport.NewFactory(transport.FactoryConfig{
		Kind:         transport.Kind(cfg.Transport),
		Port:         cfg.Port,
		WriteTimeout: cfg.WriteTimeout,
		BufferSize:   cfg.BufferSize,
		NATSURL:      cfg.NATS.URL,
		NATSSubject:  cfg.NATS.Subject,
	})
	if err != nil {
		return err
	}

	logger.Info("Starting", "role", role.String(), "transport", factory.Kind(),
		"codec", codec.Name(), "port", cfg.Port)

	switch role {
	case broadcast.RolePublisher:
		sock, err := factory.Bind()
		if err != nil {
			logger.Error("Failed to bind", err, "port", cfg.Port)
			return err
		}
		defer sock.Close()

		return broadcast.NewPublisher(sock, broadcast.PublisherConfig{
			Sender: cfg.Sender,
			Codec:  codec,
			Input:  stdin(c),
			Output: stdout(c),
		}).Run(ctx)

	default:
		fmt.Fprintf(stdout(c), "Connecting to [%s]\n", factory.ConnectEndpoint(address))
		sock, err := factory.Connect(address)
		if err != nil {
			logger.Error("Failed to connect", err, "address", address, "port", cfg.Port)
			return err
		}
		defer sock.Close()

		return broadcast.NewSubscriber(sock, broadcast.SubscriberConfig{
			Codec:  codec,
			Output: stdout(c),
		}).Run(ctx)
	}
}

// stdin and stdout follow the root command's Reader and Writer when set.
func stdin(c *cli.Command) io.Reader {
	if r := c.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func stdout(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// loadConfig layers explicitly set flags over file and environment settings
// and initializes logging from the result.
func loadConfig(c *cli.Command) (*config.Config, error) {
	if err := config.InitViperConfig(c.String("config")); err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			viper.Set(key, c.Value(flag))
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	debug := c.Bool("debug")
	logger.Init(cfg.Environment, debug)
	if !debug {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

package config

import (
	"github.com/nats-io/nats.go"
)

func ConnectNats(cfg NatsConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("carbonex"),
		nats.MaxReconnects(-1),
	}

	if len(cfg.User) > 0 {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Pass))
	}

	return nats.Connect(cfg.URL, opts...)
}

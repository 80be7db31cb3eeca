package database

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

func NewNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return nc, nil
}

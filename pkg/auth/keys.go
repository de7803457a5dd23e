package auth

import (
	"fmt"

	zmq "github.com/pebbe/zmq4"
)

// Keypair is a Z85-encoded CURVE keypair
type Keypair struct {
	Public string
	Secret string
}

// GenerateKeypair mints a new CURVE keypair
func GenerateKeypair() (Keypair, error) {
	public, secret, err := zmq.NewCurveKeypair()
	if err != nil {
		return Keypair{}, fmt.Errorf("failed to generate keypair: %w", err)
	}

	return Keypair{Public: public, Secret: secret}, nil
}

package events

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/xdg-go/scram"
)

/* ========================================================================
 * SCRAM authentication for the kafka client
 * ======================================================================== */

var (
	sha256Fcn scram.HashGeneratorFcn = func() hash.Hash { return sha256.New() }
	sha512Fcn scram.HashGeneratorFcn = func() hash.Hash { return sha512.New() }
)

// scramClient adapts xdg-go/scram to sarama's SCRAMClient.
type scramClient struct {
	*scram.Client
	*scram.ClientConversation
	hashGeneratorFcn scram.HashGeneratorFcn
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.hashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.Client = client
	c.ClientConversation = client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.ClientConversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.ClientConversation.Done()
}

package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// WSClient implements Client on top of the solana-go WebSocket client.
// Subscriptions use the processed commitment for the fastest delivery; the
// transaction fetch downstream re-reads at confirmed.
type WSClient struct {
	client     *ws.Client
	commitment rpc.CommitmentType
}

// Connect dials the WebSocket endpoint. HTTP(S) endpoints are converted to
// their ws(s) equivalents.
func Connect(ctx context.Context, endpoint string) (*WSClient, error) {
	client, err := ws.Connect(ctx, ToWSEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	return &WSClient{
		client:     client,
		commitment: rpc.CommitmentProcessed,
	}, nil
}

func (c *WSClient) SubscribeMentions(ctx context.Context, address string) (Subscription, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	sub, err := c.client.LogsSubscribeMentions(pk, c.commitment)
	if err != nil {
		return nil, fmt.Errorf("logsSubscribe: %w", err)
	}
	return &wsSubscription{sub: sub}, nil
}

func (c *WSClient) Close() {
	c.client.Close()
}

type wsSubscription struct {
	sub *ws.LogSubscription
}

func (s *wsSubscription) Recv(ctx context.Context) (*LogEvent, error) {
	result, err := s.sub.Recv(ctx)
	if err != nil {
		return nil, err
	}
	return &LogEvent{
		Signature: result.Value.Signature.String(),
		Err:       result.Value.Err,
		Logs:      result.Value.Logs,
	}, nil
}

func (s *wsSubscription) Unsubscribe() {
	s.sub.Unsubscribe()
}

// ToWSEndpoint converts an HTTP(S) RPC endpoint to its WebSocket equivalent.
func ToWSEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + endpoint[len("https://"):]
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + endpoint[len("http://"):]
	}
	return endpoint
}

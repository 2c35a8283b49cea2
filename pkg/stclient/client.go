package stclient

import (
	"context"
	"errors"
	"time"

	"github.com/hadaraza/Client-Server-HR/internal"
	"github.com/hadaraza/Client-Server-HR/pkg/discovery"
)

// Params are the operator inputs for one round: plain integers, validated at
// the interface boundary.
type Params struct {
	FileSize uint64
	TCPConns int
	UDPConns int
}

// ErrDone stops the client loop cleanly when the params source has nothing
// more to run.
var ErrDone = errors.New("no more rounds")

// Client drives the discovery state machine: look for a server, run one
// round against the first valid offer, report, and go back to looking.
type Client struct {
	cfg   *internal.ClientConfig
	state discovery.State

	// OnRound receives each completed round's statistics, after the join.
	OnRound func(*Stats)
}

func NewClient(cfg *internal.ClientConfig) *Client {
	return &Client{
		cfg:   cfg,
		state: discovery.StateStartup,
	}
}

// State reports the current position in the discovery state machine.
func (c *Client) State() discovery.State {
	return c.state
}

// Run executes rounds until ctx is cancelled or nextParams returns ErrDone.
// nextParams is called before each round, which is where interactive
// operators get prompted.
func (c *Client) Run(ctx context.Context, nextParams func(context.Context) (Params, error)) error {
	listener, err := discovery.NewListener(ctx, c.cfg.OfferPort)
	if err != nil {
		return err
	}
	defer listener.Close()

	for {
		params, err := nextParams(ctx)
		if err != nil {
			if errors.Is(err, ErrDone) {
				return nil
			}
			return err
		}
		if params.TCPConns < 0 || params.UDPConns < 0 {
			internal.Warn("ignoring negative connection counts", internal.Fields{
				"tcp_conns": params.TCPConns,
				"udp_conns": params.UDPConns,
			})
			continue
		}

		if c.state == discovery.StateStartup {
			c.state, err = c.state.StartLooking()
			if err != nil {
				return err
			}
		}
		internal.Info("looking for speed test server", internal.Fields{
			internal.FieldState: c.state.String(),
			internal.FieldPort:  c.cfg.OfferPort,
		})

		offer, addr, err := listener.WaitForOffer(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			internal.Error("offer wait failed", internal.Fields{
				internal.FieldError: err.Error(),
			})
			return err
		}

		c.state, err = c.state.OfferAccepted()
		if err != nil {
			return err
		}

		stats := RunRound(ctx, RoundParams{
			ServerIP:    addr.IP,
			Offer:       offer,
			FileSize:    params.FileSize,
			TCPConns:    params.TCPConns,
			UDPConns:    params.UDPConns,
			DialTimeout: time.Duration(c.cfg.DialTimeoutSec) * time.Second,
			TCPTimeout:  time.Duration(c.cfg.TCPTimeoutSec) * time.Second,
			UDPTimeout:  time.Duration(c.cfg.UDPTimeoutSec) * time.Second,
		})

		if c.OnRound != nil {
			c.OnRound(stats)
		}

		// Round complete, back to listening for offers.
		c.state, err = c.state.StartLooking()
		if err != nil {
			return err
		}
		internal.Info("all transfers complete, listening for offers", internal.Fields{
			internal.FieldState: c.state.String(),
		})
	}
}

package pos

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"time"

	"fastfoot/internal/logger"
)

// Supported terminal protocols. The card terminals in the field speak two
// different JSON dialects over raw TCP; demo approves everything locally
// and is the default for installs without a terminal.
const (
	ProtocolDemo     = "demo"
	ProtocolGeneric  = "generic"
	ProtocolBekoJSON = "beko-json"
)

// Card payments block the settlement until the customer inserts a card, so
// the ceiling is generous.
const defaultTimeout = 60 * time.Second

// Client talks to a physical card payment terminal. It satisfies the
// finalizer's CardCharger: a nil error means the charge was approved.
type Client struct {
	addr     string
	protocol string
	timeout  time.Duration
	lg       *logger.Logger
}

func NewClient(addr, protocol string, lg *logger.Logger) (*Client, error) {
	switch protocol {
	case ProtocolDemo, ProtocolGeneric, ProtocolBekoJSON:
	default:
		return nil, fmt.Errorf("unknown pos protocol %q", protocol)
	}
	return &Client{addr: addr, protocol: protocol, timeout: defaultTimeout, lg: lg}, nil
}

// Sale charges amount on the terminal, tagging the transaction with the
// slot name for the terminal's own journal.
func (c *Client) Sale(ctx context.Context, amount float64, slot string) error {
	if c.protocol == ProtocolDemo {
		c.lg.Info("pos_sale_approved", map[string]any{"protocol": c.protocol, "amount": amount, "slot": slot})
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("pos terminal unreachable: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var payload any
	switch c.protocol {
	case ProtocolGeneric:
		payload = map[string]any{"type": "sale", "amount": amount, "reference": slot}
	case ProtocolBekoJSON:
		payload = map[string]any{"Command": "Sale", "Amount": int64(math.Round(amount * 100)), "ReceiptNo": slot}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sale: %w", err)
	}
	if _, err := conn.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("send sale: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read terminal response: %w", err)
	}
	if err := c.parseResponse(line); err != nil {
		c.lg.Warn("pos_sale_declined", err, map[string]any{"protocol": c.protocol, "amount": amount, "slot": slot})
		return err
	}
	c.lg.Info("pos_sale_approved", map[string]any{"protocol": c.protocol, "amount": amount, "slot": slot})
	return nil
}

func (c *Client) parseResponse(line []byte) error {
	switch c.protocol {
	case ProtocolGeneric:
		var resp struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("bad terminal response: %w", err)
		}
		if resp.Status != "approved" {
			return fmt.Errorf("terminal declined: %s %s", resp.Status, resp.Message)
		}
	case ProtocolBekoJSON:
		var resp struct {
			ResultCode int    `json:"ResultCode"`
			ResultText string `json:"ResultText"`
		}
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("bad terminal response: %w", err)
		}
		if resp.ResultCode != 0 {
			return fmt.Errorf("terminal declined: code %d %s", resp.ResultCode, resp.ResultText)
		}
	}
	return nil
}

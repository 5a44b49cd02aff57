package pos

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"

	"fastfoot/internal/logger"
)

// terminalSim answers one sale request per connection with a canned reply.
type terminalSim struct {
	ln    net.Listener
	reply string

	mu       sync.Mutex
	requests []map[string]any
}

func newTerminalSim(t *testing.T, reply string) *terminalSim {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	sim := &terminalSim{ln: ln, reply: reply}
	t.Cleanup(func() { _ = ln.Close() })
	go sim.serve()
	return sim
}

func (s *terminalSim) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			defer conn.Close()
			line, err := bufio.NewReader(conn).ReadBytes('\n')
			if err != nil {
				return
			}
			var req map[string]any
			if json.Unmarshal(line, &req) == nil {
				s.mu.Lock()
				s.requests = append(s.requests, req)
				s.mu.Unlock()
			}
			_, _ = conn.Write([]byte(s.reply + "\n"))
		}(conn)
	}
}

func (s *terminalSim) lastRequest() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func TestDemoAlwaysApproves(t *testing.T) {
	client, err := NewClient("", ProtocolDemo, logger.New("pos-test"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Sale(context.Background(), 125.50, "Masa 3"); err != nil {
		t.Fatalf("Sale: %v", err)
	}
}

func TestGenericApproved(t *testing.T) {
	sim := newTerminalSim(t, `{"status":"approved"}`)
	client, _ := NewClient(sim.ln.Addr().String(), ProtocolGeneric, logger.New("pos-test"))

	if err := client.Sale(context.Background(), 90, "Masa 1"); err != nil {
		t.Fatalf("Sale: %v", err)
	}
	req := sim.lastRequest()
	if req["type"] != "sale" || req["amount"] != float64(90) || req["reference"] != "Masa 1" {
		t.Fatalf("request = %+v", req)
	}
}

func TestGenericDeclined(t *testing.T) {
	sim := newTerminalSim(t, `{"status":"declined","message":"insufficient funds"}`)
	client, _ := NewClient(sim.ln.Addr().String(), ProtocolGeneric, logger.New("pos-test"))

	if err := client.Sale(context.Background(), 90, "Masa 1"); err == nil {
		t.Fatalf("declined sale returned nil error")
	}
}

func TestBekoJSONAmountInKurus(t *testing.T) {
	sim := newTerminalSim(t, `{"ResultCode":0}`)
	client, _ := NewClient(sim.ln.Addr().String(), ProtocolBekoJSON, logger.New("pos-test"))

	if err := client.Sale(context.Background(), 65.50, "Paket 2"); err != nil {
		t.Fatalf("Sale: %v", err)
	}
	req := sim.lastRequest()
	if req["Command"] != "Sale" || req["Amount"] != float64(6550) || req["ReceiptNo"] != "Paket 2" {
		t.Fatalf("request = %+v", req)
	}
}

func TestBekoJSONDeclined(t *testing.T) {
	sim := newTerminalSim(t, `{"ResultCode":51,"ResultText":"DECLINED"}`)
	client, _ := NewClient(sim.ln.Addr().String(), ProtocolBekoJSON, logger.New("pos-test"))

	if err := client.Sale(context.Background(), 10, "Masa 1"); err == nil {
		t.Fatalf("declined sale returned nil error")
	}
}

func TestUnreachableTerminal(t *testing.T) {
	client, _ := NewClient("127.0.0.1:1", ProtocolGeneric, logger.New("pos-test"))
	if err := client.Sale(context.Background(), 10, "Masa 1"); err == nil {
		t.Fatalf("unreachable terminal returned nil error")
	}
}

func TestUnknownProtocolRejected(t *testing.T) {
	if _, err := NewClient("127.0.0.1:5000", "ingenico-xml", logger.New("pos-test")); err == nil {
		t.Fatalf("unknown protocol accepted")
	}
}

package match

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tidewar/shared/logging"
	"tidewar/shared/protocol"
)

// Transport relays match state to other participants. An empty to list
// means every other participant.
type Transport interface {
	SendMatchState(matchID string, opCode int64, payload string, to ...string) error
}

var ErrClosed = errors.New("match: dispatcher closed")

type Handler func(from string, msg any)

type PresenceHandler func(joins, leaves []string)

// Subscription identifies one registered handler.
type Subscription struct {
	op protocol.OpCode
	id int
}

// presenceOp keys presence handlers; it is never a wire opcode.
const presenceOp protocol.OpCode = 0

type entry struct {
	id       int
	fn       Handler
	presence PresenceHandler
}

type inbound struct {
	from     string
	env      protocol.Envelope
	presence bool
	joins    []string
	leaves   []string
}

// Dispatcher routes match messages by opcode. Subscribe, Send*, Commit and
// Drain run on the tick goroutine; only Deliver* may be called from the
// transport goroutine.
type Dispatcher struct {
	matchID string
	self    string
	host    string
	tr      Transport

	handlers map[protocol.OpCode][]entry
	nextID   int

	inbox     chan inbound
	done      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(matchID, self, host string, tr Transport, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = protocol.RecvBuffer
	}
	return &Dispatcher{
		matchID:  matchID,
		self:     self,
		host:     host,
		tr:       tr,
		handlers: map[protocol.OpCode][]entry{},
		inbox:    make(chan inbound, buffer),
		done:     make(chan struct{}),
	}
}

func (d *Dispatcher) IsHost() bool { return d.self == d.host }

func (d *Dispatcher) Self() string { return d.self }

func (d *Dispatcher) Host() string { return d.host }

// Subscribe appends fn to op's handler list.
func (d *Dispatcher) Subscribe(op protocol.OpCode, fn Handler) Subscription {
	d.nextID++
	d.handlers[op] = append(d.handlers[op], entry{id: d.nextID, fn: fn})
	return Subscription{op: op, id: d.nextID}
}

func (d *Dispatcher) SubscribePresence(fn PresenceHandler) Subscription {
	d.nextID++
	d.handlers[presenceOp] = append(d.handlers[presenceOp], entry{id: d.nextID, presence: fn})
	return Subscription{op: presenceOp, id: d.nextID}
}

// Handle subscribes a handler typed to op's payload.
func Handle[T any](d *Dispatcher, op protocol.OpCode, fn func(from string, msg T)) Subscription {
	return d.Subscribe(op, func(from string, msg any) {
		v, ok := msg.(*T)
		if !ok {
			logging.Error("handler payload type mismatch", nil, logging.Fields{"op": op.String(), "type": fmt.Sprintf("%T", msg)})
			return
		}
		fn(from, *v)
	})
}

func (d *Dispatcher) Unsubscribe(s Subscription) {
	list := d.handlers[s.op]
	for i, e := range list {
		if e.id == s.id {
			d.handlers[s.op] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Send relays msg to every other participant.
func (d *Dispatcher) Send(op protocol.OpCode, msg any) error { return d.SendTo(op, msg) }

// SendTo relays msg to the listed participants only.
func (d *Dispatcher) SendTo(op protocol.OpCode, msg any, to ...string) error {
	env, err := protocol.Encode(op, msg)
	if err != nil {
		return err
	}
	return d.send(env, to...)
}

func (d *Dispatcher) send(env protocol.Envelope, to ...string) error {
	if err := d.tr.SendMatchState(d.matchID, int64(env.OpCode), string(env.Payload), to...); err != nil {
		logging.Error("send match state", err, logging.Fields{"match": d.matchID, "op": env.OpCode.String()})
		return err
	}
	return nil
}

func mustEncode(op protocol.OpCode, msg any) protocol.Envelope {
	env, err := protocol.Encode(op, msg)
	if err != nil {
		panic("match: " + err.Error())
	}
	return env
}

// SendSelf runs local handlers for msg exactly as a remote delivery would,
// without touching the wire.
func (d *Dispatcher) SendSelf(op protocol.OpCode, msg any) {
	env := mustEncode(op, msg)
	d.dispatch(d.self, env)
}

// Commit broadcasts an authoritative change: one Send, then one SendSelf
// with the same bytes. The local apply happens even when the send fails.
func (d *Dispatcher) Commit(op protocol.OpCode, msg any) error {
	env := mustEncode(op, msg)
	sendErr := d.send(env)
	d.dispatch(d.self, env)
	return sendErr
}

// dispatch decodes env and runs its handlers in registration order.
// Undecodable payloads and policy violations are logged and dropped.
func (d *Dispatcher) dispatch(from string, env protocol.Envelope) {
	op := env.OpCode
	if op.HostOnly() && !d.IsHost() {
		logging.Debug("dropping host-only message", logging.Fields{"op": op.String(), "from": from})
		return
	}
	if op.Authoritative() && from != d.host {
		logging.Warn("dropping commit from non-host", logging.Fields{"op": op.String(), "from": from, "host": d.host})
		return
	}
	msg, err := env.Decode()
	if err != nil {
		logging.Error("dropping undecodable match message", err, logging.Fields{"op": int64(op), "from": from})
		return
	}
	list := append([]entry(nil), d.handlers[op]...)
	for _, e := range list {
		e.fn(from, msg)
	}
}

// Deliver queues a message received from the transport.
func (d *Dispatcher) Deliver(ctx context.Context, from string, op int64, payload string) error {
	return d.enqueue(ctx, inbound{from: from, env: protocol.Envelope{OpCode: protocol.OpCode(op), Payload: []byte(payload)}})
}

// DeliverPresence queues a presence change received from the transport.
func (d *Dispatcher) DeliverPresence(ctx context.Context, joins, leaves []string) error {
	return d.enqueue(ctx, inbound{presence: true, joins: joins, leaves: leaves})
}

func (d *Dispatcher) enqueue(ctx context.Context, in inbound) error {
	select {
	case <-d.done:
		return ErrClosed
	default:
	}
	select {
	case d.inbox <- in:
		return nil
	case <-d.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain dispatches every queued inbound message and returns how many ran.
func (d *Dispatcher) Drain() int {
	n := 0
	for {
		select {
		case <-d.done:
			return n
		case in := <-d.inbox:
			n++
			if in.presence {
				for _, e := range append([]entry(nil), d.handlers[presenceOp]...) {
					e.presence(in.joins, in.leaves)
				}
				continue
			}
			d.dispatch(in.from, in.env)
		default:
			return n
		}
	}
}

// Close removes every subscription, state and presence alike, and rejects
// further deliveries.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.handlers = map[protocol.OpCode][]entry{}
	})
}

// Subscriptions reports how many handlers are registered.
func (d *Dispatcher) Subscriptions() int {
	n := 0
	for _, l := range d.handlers {
		n += len(l)
	}
	return n
}

package match

import (
	"context"
	"errors"
	"testing"

	"tidewar/shared/protocol"
)

type sentState struct {
	op      int64
	payload string
	to      []string
}

type recordTransport struct {
	sent []sentState
	err  error
}

func (r *recordTransport) SendMatchState(_ string, op int64, payload string, to ...string) error {
	r.sent = append(r.sent, sentState{op: op, payload: payload, to: to})
	return r.err
}

func TestCommitSendsOnceAndAppliesLocallyOnce(t *testing.T) {
	rec := &recordTransport{}
	d := NewDispatcher("m1", "amy", "amy", rec, 8)
	var got []protocol.UnitMoved
	Handle(d, protocol.OpUnitMoved, func(_ string, m protocol.UnitMoved) { got = append(got, m) })

	msg := protocol.UnitMoved{ID: 3, NodeX: 4, NodeY: 1}
	if err := d.Commit(protocol.OpUnitMoved, msg); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(rec.sent) != 1 || rec.sent[0].op != int64(protocol.OpUnitMoved) || len(rec.sent[0].to) != 0 {
		t.Fatalf("sent = %+v", rec.sent)
	}
	if len(got) != 1 || got[0] != msg {
		t.Fatalf("local apply = %+v", got)
	}
}

func TestCommitAppliesLocallyWhenSendFails(t *testing.T) {
	rec := &recordTransport{err: errors.New("socket closed")}
	d := NewDispatcher("m1", "amy", "amy", rec, 8)
	calls := 0
	Handle(d, protocol.OpUnitMoved, func(string, protocol.UnitMoved) { calls++ })
	if err := d.Commit(protocol.OpUnitMoved, protocol.UnitMoved{ID: 1}); err == nil {
		t.Fatalf("expected send error")
	}
	if calls != 1 {
		t.Fatalf("local apply ran %d times", calls)
	}
}

func TestCardPlayRequestOnlyReachesHost(t *testing.T) {
	for _, tc := range []struct {
		self string
		want int
	}{{"amy", 1}, {"bob", 0}} {
		d := NewDispatcher("m1", tc.self, "amy", &recordTransport{}, 8)
		calls := 0
		Handle(d, protocol.OpCardPlayRequest, func(string, protocol.CardPlayRequest) { calls++ })
		if err := d.Deliver(context.Background(), "carl", int64(protocol.OpCardPlayRequest), `{"playerId":"carl"}`); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		d.Drain()
		if calls != tc.want {
			t.Fatalf("self=%s: handler ran %d times, want %d", tc.self, calls, tc.want)
		}
	}
}

func TestCommitsFromNonHostAreDropped(t *testing.T) {
	d := NewDispatcher("m1", "bob", "amy", &recordTransport{}, 8)
	calls := 0
	Handle(d, protocol.OpUnitSpawned, func(string, protocol.UnitSpawned) { calls++ })
	ctx := context.Background()
	_ = d.Deliver(ctx, "mallory", int64(protocol.OpUnitSpawned), `{"id":1}`)
	_ = d.Deliver(ctx, "amy", int64(protocol.OpUnitSpawned), `{"id":1}`)
	if n := d.Drain(); n != 2 {
		t.Fatalf("drained %d", n)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestMalformedPayloadIsDroppedAndDispatchContinues(t *testing.T) {
	d := NewDispatcher("m1", "bob", "amy", &recordTransport{}, 8)
	var ids []int
	Handle(d, protocol.OpUnitMoved, func(_ string, m protocol.UnitMoved) { ids = append(ids, m.ID) })
	ctx := context.Background()
	_ = d.Deliver(ctx, "amy", int64(protocol.OpUnitMoved), `{"id":`)
	_ = d.Deliver(ctx, "amy", 77, `{}`)
	_ = d.Deliver(ctx, "amy", int64(protocol.OpUnitMoved), `{"id":5}`)
	d.Drain()
	if len(ids) != 1 || ids[0] != 5 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	d := NewDispatcher("m1", "amy", "amy", &recordTransport{}, 8)
	var order []string
	first := d.Subscribe(protocol.OpGoldSync, func(string, any) { order = append(order, "first") })
	d.Subscribe(protocol.OpGoldSync, func(string, any) { order = append(order, "second") })
	d.SendSelf(protocol.OpGoldSync, protocol.GoldSync{PlayerID: "amy"})
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v", order)
	}
	d.Unsubscribe(first)
	order = nil
	d.SendSelf(protocol.OpGoldSync, protocol.GoldSync{PlayerID: "amy"})
	if len(order) != 1 || order[0] != "second" {
		t.Fatalf("after unsubscribe order = %v", order)
	}
}

func TestCloseRemovesStateAndPresenceHandlersTogether(t *testing.T) {
	d := NewDispatcher("m1", "amy", "amy", &recordTransport{}, 8)
	presence := 0
	d.SubscribePresence(func(joins, leaves []string) { presence += len(joins) + len(leaves) })
	Handle(d, protocol.OpUnitMoved, func(string, protocol.UnitMoved) {})
	ctx := context.Background()
	_ = d.DeliverPresence(ctx, []string{"bob"}, nil)
	d.Drain()
	if presence != 1 {
		t.Fatalf("presence handler ran %d", presence)
	}
	d.Close()
	if n := d.Subscriptions(); n != 0 {
		t.Fatalf("%d subscriptions survive Close", n)
	}
	if err := d.Deliver(ctx, "amy", int64(protocol.OpUnitMoved), `{}`); !errors.Is(err, ErrClosed) {
		t.Fatalf("deliver after close: %v", err)
	}
	if err := d.DeliverPresence(ctx, nil, []string{"bob"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("presence after close: %v", err)
	}
}

func TestDeliverHonorsContextWhenInboxFull(t *testing.T) {
	d := NewDispatcher("m1", "amy", "amy", &recordTransport{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Deliver(ctx, "bob", 1, `{}`); err != nil {
		t.Fatalf("first deliver: %v", err)
	}
	cancel()
	if err := d.Deliver(ctx, "bob", 1, `{}`); !errors.Is(err, context.Canceled) {
		t.Fatalf("blocked deliver returned %v", err)
	}
}

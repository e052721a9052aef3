package protocol

import (
	"encoding/json"
	"fmt"
)

// OpCode identifies a match message. Values are wire-stable.
type OpCode int64

const (
	OpUnitSpawned     OpCode = 1
	OpUnitMoved       OpCode = 2
	OpUnitAttacked    OpCode = 3
	OpSpellActivated  OpCode = 4
	OpCardPlayRequest OpCode = 5
	OpCardPlayed      OpCode = 6
	OpCardCanceled    OpCode = 7
	OpStartingHand    OpCode = 8
	OpMatchEnded      OpCode = 9
	OpDeckSubmit      OpCode = 10
	OpGoldSync        OpCode = 11
)

var opNames = map[OpCode]string{
	OpUnitSpawned:     "UnitSpawned",
	OpUnitMoved:       "UnitMoved",
	OpUnitAttacked:    "UnitAttacked",
	OpSpellActivated:  "SpellActivated",
	OpCardPlayRequest: "CardPlayRequest",
	OpCardPlayed:      "CardPlayed",
	OpCardCanceled:    "CardCanceled",
	OpStartingHand:    "StartingHand",
	OpMatchEnded:      "MatchEnded",
	OpDeckSubmit:      "DeckSubmit",
	OpGoldSync:        "GoldSync",
}

func (op OpCode) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return fmt.Sprintf("OpCode(%d)", int64(op))
}

// HostOnly reports opcodes that only the host may consume.
func (op OpCode) HostOnly() bool {
	return op == OpCardPlayRequest || op == OpDeckSubmit
}

// Authoritative reports opcodes that only the host may originate.
func (op OpCode) Authoritative() bool {
	switch op {
	case OpUnitSpawned, OpUnitMoved, OpUnitAttacked, OpSpellActivated,
		OpCardPlayed, OpCardCanceled, OpStartingHand, OpMatchEnded, OpGoldSync:
		return true
	}
	return false
}

var decoders = map[OpCode]func() any{
	OpUnitSpawned:     func() any { return new(UnitSpawned) },
	OpUnitMoved:       func() any { return new(UnitMoved) },
	OpUnitAttacked:    func() any { return new(UnitAttacked) },
	OpSpellActivated:  func() any { return new(SpellActivated) },
	OpCardPlayRequest: func() any { return new(CardPlayRequest) },
	OpCardPlayed:      func() any { return new(CardPlayed) },
	OpCardCanceled:    func() any { return new(CardCanceled) },
	OpStartingHand:    func() any { return new(StartingHand) },
	OpMatchEnded:      func() any { return new(MatchEnded) },
	OpDeckSubmit:      func() any { return new(DeckSubmit) },
	OpGoldSync:        func() any { return new(GoldSync) },
}

// OpCodes lists every known opcode in ascending order.
func OpCodes() []OpCode {
	out := make([]OpCode, 0, len(decoders))
	for op := OpUnitSpawned; op <= OpGoldSync; op++ {
		out = append(out, op)
	}
	return out
}

// Decode parses raw into a pointer to the payload type registered for op.
func Decode(op OpCode, raw []byte) (any, error) {
	mk, ok := decoders[op]
	if !ok {
		return nil, fmt.Errorf("unknown opcode %d", int64(op))
	}
	v := mk()
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", op, err)
	}
	return v, nil
}

// Envelope is an opcode with its serialized payload.
type Envelope struct {
	OpCode  OpCode          `json:"opcode"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes msg as op's payload.
func Encode(op OpCode, msg any) (Envelope, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", op, err)
	}
	return Envelope{OpCode: op, Payload: b}, nil
}

func (e Envelope) Decode() (any, error) { return Decode(e.OpCode, e.Payload) }

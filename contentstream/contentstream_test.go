package contentstream

import (
	"testing"

	"github.com/wudi/docsign/ir/raw"
)

func TestShowTextRoundTrip(t *testing.T) {
	ops := ShowText("F1", 23.3645, 400, 518.6355, []byte("Jane (Doe)"), false)
	data := Serialize(ops)

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, data)
	}
	if len(parsed) != len(ops) {
		t.Fatalf("expected %d ops, got %d", len(ops), len(parsed))
	}
	tf := parsed[2]
	if tf.Operator != "Tf" || tf.Operands[0].(raw.NameObj).Val != "F1" {
		t.Fatalf("unexpected Tf: %+v", tf)
	}
	if size := tf.Operands[1].(raw.NumberObj).Float(); size != 23.3645 {
		t.Fatalf("unexpected size %v", size)
	}
	tj := parsed[4]
	if got := string(tj.Operands[0].(raw.StringObj).Bytes); got != "Jane (Doe)" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestParseArraysAndDicts(t *testing.T) {
	ops, err := Parse([]byte("/OC <</MCID 3>> BDC [(A) -120 (B)] TJ EMC 0.5 g"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ops) != 4 {
		t.Fatalf("expected 4 ops, got %d", len(ops))
	}
	if d := ops[0].Operands[1].(*raw.DictObj); d.Get("MCID") == nil {
		t.Fatalf("missing MCID in %+v", ops[0])
	}
	if arr := ops[1].Operands[0].(*raw.ArrayObj); arr.Len() != 3 {
		t.Fatalf("unexpected TJ array %+v", arr)
	}
}

func TestParseRejectsDanglingOperands(t *testing.T) {
	if _, err := Parse([]byte("1 2 3")); err == nil {
		t.Fatalf("expected dangling operand error")
	}
}

func TestNum(t *testing.T) {
	if n := Num(12).(raw.NumberObj); !n.IsInt || n.I != 12 {
		t.Fatalf("expected integer operand, got %+v", n)
	}
	if n := Num(1.5).(raw.NumberObj); n.IsInt {
		t.Fatalf("expected real operand")
	}
}

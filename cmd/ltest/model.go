package ltest

import (
	"fmt"

	"github.com/anishathalye/porcupine"
)

const (
	opGet uint8 = iota
	opInc
)

type counterInput struct {
	OP uint8 // 0 => get, 1 => inc
}

type counterOutput struct {
	Value int64
}

// counterModel is a single integer register that only ever goes up by one.
var counterModel = porcupine.Model{
	Init: func() interface{} {
		return int64(0)
	},
	Step: func(state, input, output interface{}) (bool, interface{}) {
		inp := input.(counterInput)
		out := output.(counterOutput)
		st := state.(int64)
		if inp.OP == opGet {
			return out.Value == st, state
		}
		// inc reports the value it produced
		next := st + 1
		return out.Value == next, next
	},
	DescribeOperation: func(input, output interface{}) string {
		inp := input.(counterInput)
		out := output.(counterOutput)
		switch inp.OP {
		case opGet:
			return fmt.Sprintf("get() -> %d", out.Value)
		case opInc:
			return fmt.Sprintf("inc() -> %d", out.Value)
		default:
			return "<invalid>"
		}
	},
}

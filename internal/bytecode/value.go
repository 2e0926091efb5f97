// Package bytecode implements the nyx backend: the runtime value model,
// the interned string cache, packed 32-bit instruction chunks, the
// bytecode emitter and the stack-based virtual machine.
//
// Architecture: stack VM over 32-bit words, opcode in the high byte and
// a 24-bit immediate operand in the low bits. Lifetimes are lexical:
// every scope-declared local has exactly one teardown instruction on
// every exit path, strings are refcounted through the cache, and owning
// lists are destroyed exactly once.
package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType tags a runtime Value.
type ValueType byte

const (
	ValueNull ValueType = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValueRef
	ValueList
	ValueListRef
	ValueFunction
)

var valueTypeNames = [...]string{
	ValueNull:     "null",
	ValueBool:     "bool",
	ValueInt:      "int",
	ValueFloat:    "float",
	ValueString:   "string",
	ValueRef:      "ref",
	ValueList:     "list",
	ValueListRef:  "list-ref",
	ValueFunction: "function",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return "unknown"
}

// List is the heap storage behind list, tuple and class-instance
// values. A ValueList owns it and destroys it exactly once; a
// ValueListRef is a non-owning view of the same storage.
type List struct {
	Elems []Value
}

// Value is the runtime tagged union. Exactly one payload field is
// meaningful, selected by Type.
type Value struct {
	Type  ValueType
	Bool  bool
	Int   int32
	Float float64
	Str   *CachedString
	Ref   *Value
	List  *List
	Fn    *RuntimeFunction
}

// Constructors.

func NullValue() Value               { return Value{Type: ValueNull} }
func BoolValue(b bool) Value         { return Value{Type: ValueBool, Bool: b} }
func IntValue(i int32) Value         { return Value{Type: ValueInt, Int: i} }
func FloatValue(f float64) Value     { return Value{Type: ValueFloat, Float: f} }
func StringValue(s *CachedString) Value {
	return Value{Type: ValueString, Str: s}
}
func RefValue(target *Value) Value   { return Value{Type: ValueRef, Ref: target} }
func ListValue(l *List) Value        { return Value{Type: ValueList, List: l} }
func ListRefValue(l *List) Value     { return Value{Type: ValueListRef, List: l} }
func FunctionValue(fn *RuntimeFunction) Value {
	return Value{Type: ValueFunction, Fn: fn}
}

// Predicates.

func (v Value) IsNull() bool    { return v.Type == ValueNull }
func (v Value) IsBool() bool    { return v.Type == ValueBool }
func (v Value) IsInt() bool     { return v.Type == ValueInt }
func (v Value) IsFloat() bool   { return v.Type == ValueFloat }
func (v Value) IsString() bool  { return v.Type == ValueString }
func (v Value) IsRef() bool     { return v.Type == ValueRef }
func (v Value) IsAnyList() bool { return v.Type == ValueList || v.Type == ValueListRef }

// Display renders the value the way print shows it: strings raw,
// floats in their shortest form, lists elementwise. References render
// their pointee.
func (v Value) Display() string {
	switch v.Type {
	case ValueNull:
		return "null"
	case ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValueInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		if v.Str == nil {
			return ""
		}
		return v.Str.Str
	case ValueRef:
		if v.Ref == nil {
			return "<ref nil>"
		}
		return v.Ref.Display()
	case ValueList, ValueListRef:
		if v.List == nil {
			return "[]"
		}
		var sb strings.Builder
		sb.WriteByte('[')
		for i, elem := range v.List.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(elem.Display())
		}
		sb.WriteByte(']')
		return sb.String()
	case ValueFunction:
		if v.Fn != nil {
			return fmt.Sprintf("<fn %s>", v.Fn.Name)
		}
		return "<fn>"
	default:
		return fmt.Sprintf("<%s>", v.Type)
	}
}

// Repr renders the value for stack traces and the disassembler: like
// Display, but strings are quoted.
func (v Value) Repr() string {
	if v.Type == ValueString {
		if v.Str == nil {
			return `""`
		}
		return strconv.Quote(v.Str.Str)
	}
	if v.Type == ValueRef {
		return "&" + func() string {
			if v.Ref == nil {
				return "nil"
			}
			return v.Ref.Repr()
		}()
	}
	return v.Display()
}

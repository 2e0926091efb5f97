package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// NativeFn is the implementation side of a native function: it receives
// the argument slots in place on the VM stack and returns the result
// value. Argument teardown is the caller's emitted code, not the
// native's.
type NativeFn func(vm *VM, args []Value) (Value, error)

// nativeArities mirrors the resolve-time registry; the VM needs the
// arity to locate the argument window.
var nativeArities = map[string]int{
	"print":    1,
	"int":      1,
	"float":    1,
	"string":   1,
	"readline": 1,
	"size":     1,
}

func (vm *VM) registerNatives() {
	vm.natives = map[string]NativeFn{
		"print":    nativePrint,
		"int":      nativeInt,
		"float":    nativeFloat,
		"string":   nativeString,
		"readline": nativeReadline,
		"size":     nativeSize,
	}
}

func nativePrint(vm *VM, args []Value) (Value, error) {
	fmt.Fprint(vm.out, args[0].Display())
	return NullValue(), nil
}

func nativeInt(vm *VM, args []Value) (Value, error) {
	arg := deref(args[0])
	switch arg.Type {
	case ValueInt:
		return arg, nil
	case ValueFloat:
		return IntValue(int32(arg.Float)), nil
	case ValueBool:
		if arg.Bool {
			return IntValue(1), nil
		}
		return IntValue(0), nil
	case ValueString:
		parsed, err := strconv.ParseInt(strings.TrimSpace(arg.Str.Str), 10, 32)
		if err != nil {
			return NullValue(), fmt.Errorf("cannot convert %q to int", arg.Str.Str)
		}
		return IntValue(int32(parsed)), nil
	default:
		return NullValue(), fmt.Errorf("cannot convert %s to int", arg.Type)
	}
}

func nativeFloat(vm *VM, args []Value) (Value, error) {
	arg := deref(args[0])
	switch arg.Type {
	case ValueFloat:
		return arg, nil
	case ValueInt:
		return FloatValue(float64(arg.Int)), nil
	case ValueBool:
		if arg.Bool {
			return FloatValue(1), nil
		}
		return FloatValue(0), nil
	case ValueString:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(arg.Str.Str), 64)
		if err != nil {
			return NullValue(), fmt.Errorf("cannot convert %q to float", arg.Str.Str)
		}
		return FloatValue(parsed), nil
	default:
		return NullValue(), fmt.Errorf("cannot convert %s to float", arg.Type)
	}
}

func nativeString(vm *VM, args []Value) (Value, error) {
	arg := deref(args[0])
	return StringValue(vm.cache.Insert(arg.Display())), nil
}

func nativeReadline(vm *VM, args []Value) (Value, error) {
	prompt := deref(args[0])
	if prompt.Type == ValueString && prompt.Str != nil {
		fmt.Fprint(vm.out, prompt.Str.Str)
	}
	line, err := vm.in.ReadString('\n')
	if err != nil && line == "" {
		return StringValue(vm.cache.Insert("")), nil
	}
	line = strings.TrimRight(line, "\r\n")
	return StringValue(vm.cache.Insert(line)), nil
}

func nativeSize(vm *VM, args []Value) (Value, error) {
	arg := deref(args[0])
	switch {
	case arg.IsAnyList():
		return IntValue(int32(len(arg.List.Elems))), nil
	case arg.Type == ValueString:
		return IntValue(int32(len(arg.Str.Str))), nil
	default:
		return NullValue(), fmt.Errorf("size expects a list, tuple or string, got %s", arg.Type)
	}
}

// deref follows a reference argument to its pointee.
func deref(v Value) Value {
	if v.Type == ValueRef && v.Ref != nil {
		return *v.Ref
	}
	return v
}

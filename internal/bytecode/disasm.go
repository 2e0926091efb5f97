package bytecode

import (
	"fmt"
	"io"
	"sort"
)

// Disassemble writes a readable listing of one chunk: offset, source
// line (or '|' for a run continuation), mnemonic and decoded operand.
func Disassemble(w io.Writer, chunk *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	lastLine := -1
	for offset, inst := range chunk.Code {
		line := chunk.Line(offset)
		if line == lastLine {
			fmt.Fprintf(w, "%04d    | ", offset)
		} else {
			fmt.Fprintf(w, "%04d %4d ", offset, line)
			lastLine = line
		}
		fmt.Fprintln(w, formatInstruction(chunk, offset, inst))
	}
}

// DisassembleModule lists a module's top-level and teardown chunks and
// every function, in name order.
func DisassembleModule(w io.Writer, module *RuntimeModule) {
	Disassemble(w, &module.TopLevel, module.Name+": top-level")
	Disassemble(w, &module.Teardown, module.Name+": teardown")

	names := make([]string, 0, len(module.Functions))
	for name := range module.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		Disassemble(w, &module.Functions[name].Code, module.Name+": "+name)
	}
}

func formatInstruction(chunk *Chunk, offset int, inst Instruction) string {
	op := inst.Op()
	operand := inst.Operand()

	switch op {
	case OpConstant:
		if int(operand) < len(chunk.Constants) {
			return fmt.Sprintf("%-26s %4d (%s)", op, operand, chunk.Constants[operand].Repr())
		}
		return fmt.Sprintf("%-26s %4d", op, operand)
	case OpConstantString, OpLoadFunctionModulePath:
		if int(operand) < len(chunk.Strings) {
			return fmt.Sprintf("%-26s %4d (%q)", op, operand, chunk.Strings[operand])
		}
		return fmt.Sprintf("%-26s %4d", op, operand)
	case OpJumpForward, OpJumpIfTrue, OpJumpIfFalse, OpPopJumpIfEqual, OpPopJumpIfFalse:
		return fmt.Sprintf("%-26s %4d (-> %d)", op, operand, offset+1+int(operand))
	case OpJumpBackward, OpPopJumpBackIfTrue:
		return fmt.Sprintf("%-26s %4d (-> %d)", op, operand, offset+1-int(operand))
	case OpAccessLocal, OpAssignLocal, OpAccessLocalList, OpAssignLocalList,
		OpMakeRefToLocal, OpMoveLocal, OpAccessGlobal, OpAssignGlobal,
		OpAccessGlobalList, OpAssignGlobalList, OpMakeRefToGlobal, OpMoveGlobal,
		OpAccessFromTop, OpAssignFromTop, OpSwap, OpMakeList, OpReturn,
		OpLoadFunctionModuleIndex, OpExtArg:
		return fmt.Sprintf("%-26s %4d", op, operand)
	default:
		return op.String()
	}
}

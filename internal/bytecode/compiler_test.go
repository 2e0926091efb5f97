package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

func countOps(chunk *Chunk, op OpCode) int {
	count := 0
	for _, inst := range chunk.Code {
		if inst.Op() == op {
			count++
		}
	}
	return count
}

func TestCopyListEmittedForListBind(t *testing.T) {
	compiled, _ := compileSource(t,
		`fn main() -> null { var a: [int] = [1]; var b: [int] = a; return; }`)
	main := compiled.Functions["main"]
	if main == nil {
		t.Fatal("main not compiled")
	}
	if countOps(&main.Code, OpCopyList) != 1 {
		t.Errorf("expected exactly one COPY_LIST for the l-value bind, chunk:\n%s", dump(&main.Code))
	}
}

func TestTeardownMatchesLocals(t *testing.T) {
	compiled, _ := compileSource(t, `
fn f() -> null {
  var a: int = 1;
  var s: string = "x";
  var xs: [int] = [1, 2];
  return;
}
fn main() -> null { return; }`)
	fn := compiled.Functions["f"]
	if fn == nil {
		t.Fatal("f not compiled")
	}
	// One teardown per local on the return path: POP_STRING for the
	// string, POP_LIST for the list, a plain POP for the int (plus the
	// POP that drops the stored return value).
	if got := countOps(&fn.Code, OpPopString); got != 1 {
		t.Errorf("POP_STRING count = %d, want 1", got)
	}
	if got := countOps(&fn.Code, OpPopList); got != 1 {
		t.Errorf("POP_LIST count = %d, want 1", got)
	}
	if got := countOps(&fn.Code, OpReturn); got != 1 {
		t.Errorf("RETURN count = %d, want 1", got)
	}
}

func TestMethodsAreMangled(t *testing.T) {
	compiled, _ := compileSource(t, `
class C {
  public fn C() -> C { return this; }
  public fn ~C() -> null { return; }
  public fn helper() -> int { return 1; }
}
fn main() -> null { return; }`)
	for _, name := range []string{"C@C", "C@~C", "C@helper", "main"} {
		if _, ok := compiled.Functions[name]; !ok {
			t.Errorf("missing function %q in module map", name)
		}
	}
}

func TestAggregateDestructorSynthesizedOnce(t *testing.T) {
	compiled, _ := compileSource(t, `
class C { public fn ~C() -> null { return; } }
fn main() -> null {
  var a: [C] = [C()];
  var b: [C] = [C()];
  return;
}`)
	count := 0
	for name := range compiled.Functions {
		if strings.HasPrefix(name, "__destruct_") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected one synthesized destructor for [C], got %d", count)
	}
}

func TestMainCallSynthesized(t *testing.T) {
	asMain, _ := compileSource(t, `fn main() -> null { return; }`)
	if countOps(&asMain.TopLevel, OpCallFunction) != 1 {
		t.Errorf("main module top-level must call main:\n%s", dump(&asMain.TopLevel))
	}
	if countOps(&asMain.TopLevel, OpLoadFunctionSameModule) != 1 {
		t.Errorf("main is loaded from its own module:\n%s", dump(&asMain.TopLevel))
	}
}

func TestTopLevelAndTeardownEndWithHalt(t *testing.T) {
	compiled, _ := compileSource(t, `var g: int = 1;`)
	for _, chunk := range []*Chunk{&compiled.TopLevel, &compiled.Teardown} {
		if len(chunk.Code) == 0 || chunk.Code[len(chunk.Code)-1].Op() != OpHalt {
			t.Errorf("chunk does not end with HALT:\n%s", dump(chunk))
		}
	}
}

func TestTeardownReleasesGlobalsInReverse(t *testing.T) {
	compiled, _ := compileSource(t, `
var a: string = "a";
var b: [int] = [1];
var c: int = 3;`)
	// Teardown order: c (POP), b (POP_LIST), a (POP_STRING), reserved
	// null (POP), HALT.
	var ops []OpCode
	for _, inst := range compiled.Teardown.Code {
		ops = append(ops, inst.Op())
	}
	want := []OpCode{OpPop, OpPopList, OpPopString, OpPop, OpHalt}
	if len(ops) != len(want) {
		t.Fatalf("teardown = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("teardown = %v, want %v", ops, want)
		}
	}
}

func TestDisassemblerOutput(t *testing.T) {
	compiled, _ := compileSource(t, `fn main() -> null { print(1 + 2); return; }`)
	var buf bytes.Buffer
	DisassembleModule(&buf, compiled)
	out := buf.String()

	for _, want := range []string{"== main: top-level ==", "== main: teardown ==", "== main: main ==",
		"CONSTANT_STRING", "CALL_NATIVE", "RETURN", "HALT"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}

func dump(chunk *Chunk) string {
	var buf bytes.Buffer
	Disassemble(&buf, chunk, "chunk")
	return buf.String()
}

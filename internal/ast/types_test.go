package ast

import (
	"testing"

	"github.com/cwbudde/go-nyx/internal/lexer"
)

func TestTypeString(t *testing.T) {
	intType := NewPrimitive(TypeInt, false, false)
	tests := []struct {
		typ  TypeExpr
		want string
	}{
		{intType, "int"},
		{NewPrimitive(TypeFloat, true, false), "const float"},
		{NewPrimitive(TypeInt, false, true), "ref int"},
		{&ListType{TypeData: TypeData{Kind: TypeList}, Contained: intType}, "[int]"},
		{
			&TupleType{TypeData: TypeData{Kind: TypeTuple}, Types: []TypeExpr{intType, intType}},
			"{int, int}",
		},
		{
			&UserDefinedType{TypeData: TypeData{Kind: TypeClass}, Name: lexer.Token{Lexeme: "C"}},
			"C",
		},
	}
	for _, tt := range tests {
		if got := TypeExprString(tt.typ); got != tt.want {
			t.Errorf("TypeExprString = %q, want %q", got, tt.want)
		}
	}
}

func TestShortTypeSignatureIgnoresConst(t *testing.T) {
	intType := NewPrimitive(TypeInt, false, false)
	constInt := NewPrimitive(TypeInt, true, false)
	list := &ListType{TypeData: TypeData{Kind: TypeList}, Contained: intType}
	constList := &ListType{TypeData: TypeData{Kind: TypeList}, Contained: constInt}
	if ShortTypeSignature(list) != ShortTypeSignature(constList) {
		t.Error("const qualification must not change the destructor signature")
	}
	if ShortTypeSignature(list) != "l<int>" {
		t.Errorf("signature = %q", ShortTypeSignature(list))
	}
}

func TestIdentTupleSize(t *testing.T) {
	tuple := &IdentTuple{Elems: []*IdentTupleElem{
		{Name: lexer.Token{Lexeme: "a"}},
		{Nested: &IdentTuple{Elems: []*IdentTupleElem{
			{Name: lexer.Token{Lexeme: "b"}},
			{Name: lexer.Token{Lexeme: "c"}},
		}}},
	}}
	if tuple.Size() != 3 {
		t.Errorf("Size = %d, want 3", tuple.Size())
	}
}

func TestLifecycleClassification(t *testing.T) {
	class := &ClassStmt{Name: lexer.Token{Lexeme: "C"}}
	ctor := &FunctionStmt{Name: lexer.Token{Lexeme: "C"}, Class: class}
	dtor := &FunctionStmt{Name: lexer.Token{Lexeme: "~C"}, Class: class}
	plain := &FunctionStmt{Name: lexer.Token{Lexeme: "m"}, Class: class}

	if !ctor.IsConstructor() || ctor.IsDestructor() {
		t.Error("ctor misclassified")
	}
	if !dtor.IsDestructor() || dtor.IsConstructor() {
		t.Error("dtor misclassified")
	}
	if plain.IsConstructor() || plain.IsDestructor() {
		t.Error("plain method misclassified")
	}
}

package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is a primitive MIR type.
type Type int

const (
	TypeNone Type = iota
	TypeI8
	TypeU8
	TypeI16
	TypeU16
	TypeI32
	TypeU32
	TypeI64
	TypeU64
	TypeF // single float (32-bit)
	TypeD // double float (64-bit)
	TypeP // raw pointer, word sized
)

// WordSize is the width of registers and pointers in bytes.
const WordSize = 8

var typeText = [...]string{
	TypeNone: "",
	TypeI8:   "i8",
	TypeU8:   "u8",
	TypeI16:  "i16",
	TypeU16:  "u16",
	TypeI32:  "i32",
	TypeU32:  "u32",
	TypeI64:  "i64",
	TypeU64:  "u64",
	TypeF:    "f",
	TypeD:    "d",
	TypeP:    "p",
}

// String returns the element type name used in memory operands.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeText) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeText[t]
}

func (t Type) IsFloat() bool { return t == TypeF || t == TypeD }

func (t Type) IsValid() bool { return t > TypeNone && t <= TypeP }

// RegisterName returns the declared type of a register holding t. MIR
// registers are i64, f or d; every integer and pointer widens to i64.
func (t Type) RegisterName() string {
	switch t {
	case TypeF:
		return "f"
	case TypeD:
		return "d"
	case TypeNone:
		return ""
	default:
		return "i64"
	}
}

// AccessName returns the element type used to dereference memory holding t.
// Integer memory cells are 32-bit, so i64 narrows to i32 when narrow is set.
func (t Type) AccessName(narrow bool) string {
	if narrow && t == TypeI64 {
		return TypeI32.String()
	}
	return t.String()
}

func SizeOfType(t Type) int {
	switch t {
	case TypeI8, TypeU8:
		return 1
	case TypeI16, TypeU16:
		return 2
	case TypeI32, TypeU32, TypeF:
		return 4
	case TypeI64, TypeU64, TypeD, TypeP:
		return 8
	default:
		return 0
	}
}

type typeInfo struct {
	typ  Type
	size int
}

// Source-level type names. "int" and "bool" live in 32-bit memory cells but
// are held in i64 registers.
var typeNames = map[string]typeInfo{
	"void":    {TypeNone, 0},
	"int":     {TypeI64, 4},
	"bool":    {TypeI64, 4},
	"int8":    {TypeI8, 1},
	"uint8":   {TypeU8, 1},
	"int16":   {TypeI16, 2},
	"uint16":  {TypeU16, 2},
	"int32":   {TypeI32, 4},
	"uint32":  {TypeU32, 4},
	"int64":   {TypeI64, 8},
	"uint64":  {TypeU64, 8},
	"float":   {TypeF, 4},
	"double":  {TypeD, 8},
	"pointer": {TypeP, WordSize},
	"block":   {TypeP, WordSize},
}

// ParseType maps a source type name to its MIR type.
func ParseType(name string) (Type, error) {
	info, ok := typeNames[name]
	if !ok {
		return TypeNone, fmt.Errorf("unknown type name '%s'", name)
	}
	return info.typ, nil
}

// SizeOfTypeName returns the memory size in bytes of a source type name.
func SizeOfTypeName(name string) (int, error) {
	info, ok := typeNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown type name '%s'", name)
	}
	return info.size, nil
}

// Imm is an immediate operand.
type Imm struct {
	Typ   Type
	Int   int64
	Float float64
}

func Int(v int64) Imm      { return Imm{Typ: TypeI64, Int: v} }
func Float(v float32) Imm  { return Imm{Typ: TypeF, Float: float64(v)} }
func Double(v float64) Imm { return Imm{Typ: TypeD, Float: v} }
func Pointer(v uint64) Imm { return Imm{Typ: TypeP, Int: int64(v)} }

// ParseImm reads a literal of type t from its textual property value.
func ParseImm(t Type, text string) (Imm, error) {
	switch {
	case t.IsFloat():
		v, err := strconv.ParseFloat(strings.TrimSuffix(text, "f"), 64)
		if err != nil {
			return Imm{}, fmt.Errorf("invalid %s literal '%s': %w", t.RegisterName(), text, err)
		}
		if math.IsInf(v, 0) || math.IsNaN(v) || (t == TypeF && math.Abs(v) > math.MaxFloat32) {
			return Imm{}, fmt.Errorf("%s literal '%s' is out of range", t.RegisterName(), text)
		}
		return Imm{Typ: t, Float: v}, nil
	case t == TypeP:
		v, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return Imm{}, fmt.Errorf("invalid pointer literal '%s': %w", text, err)
		}
		return Pointer(v), nil
	case t == TypeNone:
		return Imm{}, fmt.Errorf("void literal '%s'", text)
	default:
		if b, err := strconv.ParseBool(text); err == nil {
			if b {
				return Imm{Typ: t, Int: 1}, nil
			}
			return Imm{Typ: t}, nil
		}
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return Imm{}, fmt.Errorf("invalid integer literal '%s': %w", text, err)
		}
		return Imm{Typ: t, Int: v}, nil
	}
}

// String renders the literal: integers in decimal, floats with a trailing
// "f", doubles with at least one fractional digit, pointers in hex.
func (i Imm) String() string {
	switch i.Typ {
	case TypeF:
		return withPoint(strconv.FormatFloat(i.Float, 'g', -1, 32)) + "f"
	case TypeD:
		return withPoint(strconv.FormatFloat(i.Float, 'g', -1, 64))
	case TypeP:
		return fmt.Sprintf("0x%x", uint64(i.Int))
	default:
		return strconv.FormatInt(i.Int, 10)
	}
}

func withPoint(s string) string {
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

// Param is a named, typed function parameter.
type Param struct {
	Name string
	Typ  Type
}

// ThisParam is the implicit object pointer leading a method's parameters.
var ThisParam = Param{Name: "_this_", Typ: TypeI64}

// Symbol renders the parameter as "<regtype>:<name>".
func (p Param) Symbol() string { return p.Typ.RegisterName() + ":" + p.Name }

// Signature describes a function: its name, return type and parameters.
type Signature struct {
	Name   string
	Return Type
	Params []Param
}

// Label is the canonical structural label. Function and parameter names do
// not take part in it.
func (s Signature) Label() string {
	parts := make([]string, 0, len(s.Params)+1)
	if s.Return == TypeNone {
		parts = append(parts, "void")
	} else {
		parts = append(parts, s.Return.String())
	}
	for _, p := range s.Params {
		parts = append(parts, p.Typ.String())
	}
	return strings.Join(parts, "_")
}

func (s Signature) String() string {
	var sb strings.Builder
	if s.Return == TypeNone {
		sb.WriteString("void")
	} else {
		sb.WriteString(s.Return.RegisterName())
	}
	fmt.Fprintf(&sb, " %s(", s.Name)
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Symbol())
	}
	sb.WriteString(")")
	return sb.String()
}

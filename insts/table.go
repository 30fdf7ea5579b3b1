package insts

// OperandKind classifies the textual operands an instruction accepts.
type OperandKind uint8

const (
	KindReg OperandKind = iota
	KindImm
	KindCodeLabel
	KindDataLabel
	// KindMemRef is an `off(reg)` operand, available to aliases only. It
	// expands into a register operand followed by an immediate operand.
	KindMemRef
)

// Spec describes one base instruction the assembler can emit.
type Spec struct {
	Name     string
	Operands []OperandKind

	Op     Op
	Format Format
	Width  uint8
	Signed bool
	Effect Effect
}

// Build constructs an Instruction at the given address from fully resolved
// integer operands (register IDs, immediates, label addresses), in the
// operand order of the Spec.
func (s *Spec) Build(addr uint32, ops []int32) *Instruction {
	inst := &Instruction{Addr: addr, Op: s.Op, Format: s.Format,
		Width: s.Width, Signed: s.Signed, Effect: s.Effect}

	switch s.Format {
	case FormatReg:
		inst.Rd, inst.Rs1, inst.Rs2 = uint8(ops[0]), uint8(ops[1]), uint8(ops[2])
	case FormatImm:
		inst.Rd, inst.Rs1, inst.Imm = uint8(ops[0]), uint8(ops[1]), ops[2]
	case FormatUpper:
		inst.Rd, inst.Imm = uint8(ops[0]), ops[1]
	case FormatLoad:
		inst.Rd, inst.Rs1, inst.Imm = uint8(ops[0]), uint8(ops[1]), ops[2]
	case FormatStore:
		inst.Rs2, inst.Rs1, inst.Imm = uint8(ops[0]), uint8(ops[1]), ops[2]
	case FormatFlush:
		inst.Rs1, inst.Imm = uint8(ops[0]), ops[1]
	case FormatBranch:
		inst.Rs1, inst.Rs2, inst.Imm = uint8(ops[0]), uint8(ops[1]), ops[2]
	case FormatJump:
		inst.Rd, inst.Imm = uint8(ops[0]), ops[1]
	case FormatJumpReg:
		inst.Rd, inst.Rs1, inst.Imm = uint8(ops[0]), uint8(ops[1]), ops[2]
	case FormatCycle:
		inst.Rd = uint8(ops[0])
	case FormatFlushAll, FormatSerial:
	}

	return inst
}

// AliasOperand maps one operand of an alias expansion: either an index into
// the alias's own operand list, or a literal string parsed in place.
type AliasOperand struct {
	Index   int
	Literal string
}

func opIdx(i int) AliasOperand    { return AliasOperand{Index: i} }
func opLit(s string) AliasOperand { return AliasOperand{Index: -1, Literal: s} }

// Alias is an alternative spelling that expands into a base instruction.
type Alias struct {
	Name     string
	Operands []OperandKind
	Base     string
	BaseOps  []AliasOperand
}

var rrr = []OperandKind{KindReg, KindReg, KindReg}
var rri = []OperandKind{KindReg, KindReg, KindImm}
var rrl = []OperandKind{KindReg, KindReg, KindCodeLabel}

func alu(name string, op Op) []Spec {
	return []Spec{
		{Name: name, Operands: rrr, Op: op, Format: FormatReg},
		{Name: name + "i", Operands: rri, Op: op, Format: FormatImm},
	}
}

func mext(name string, op Op) Spec {
	return Spec{Name: name, Operands: rrr, Op: op, Format: FormatReg}
}

func load(name string, width uint8, signed bool) Spec {
	return Spec{Name: name, Operands: rri, Op: OpLoad, Format: FormatLoad,
		Width: width, Signed: signed}
}

func store(name string, width uint8) Spec {
	return Spec{Name: name, Operands: rri, Op: OpStore, Format: FormatStore,
		Width: width}
}

func branch(name string, op Op) Spec {
	return Spec{Name: name, Operands: rrl, Op: op, Format: FormatBranch}
}

func allSpecs() []Spec {
	specs := []Spec{}
	specs = append(specs, alu("add", OpAdd)...)
	specs = append(specs, alu("sub", OpSub)...)
	specs = append(specs, alu("sll", OpSll)...)
	specs = append(specs, alu("srl", OpSrl)...)
	specs = append(specs, alu("sra", OpSra)...)
	specs = append(specs, alu("xor", OpXor)...)
	specs = append(specs, alu("or", OpOr)...)
	specs = append(specs, alu("and", OpAnd)...)

	specs = append(specs,
		Spec{Name: "slt", Operands: rrr, Op: OpSlt, Format: FormatReg},
		Spec{Name: "slti", Operands: rri, Op: OpSlt, Format: FormatImm},
		Spec{Name: "sltu", Operands: rrr, Op: OpSltu, Format: FormatReg},
		Spec{Name: "sltiu", Operands: rri, Op: OpSltu, Format: FormatImm},

		Spec{Name: "lui", Operands: []OperandKind{KindReg, KindImm},
			Op: OpLui, Format: FormatUpper},
		Spec{Name: "auipc", Operands: []OperandKind{KindReg, KindImm},
			Op: OpAuipc, Format: FormatUpper},

		mext("mul", OpMul),
		mext("mulh", OpMulh),
		mext("mulhu", OpMulhu),
		mext("mulhsu", OpMulhsu),
		mext("div", OpDiv),
		mext("divu", OpDivu),
		mext("rem", OpRem),
		mext("remu", OpRemu),

		load("lw", 4, true),
		load("lh", 2, true),
		load("lb", 1, true),
		load("lhu", 2, false),
		load("lbu", 1, false),
		store("sw", 4),
		store("sh", 2),
		store("sb", 1),

		Spec{Name: "cbo.flush", Operands: []OperandKind{KindReg, KindImm},
			Op: OpCboFlush, Format: FormatFlush, Width: 4},
		// "x.flushall" does not actually exist, but the vendor-specific
		// extension instruction with the appropriate semantics has an even
		// uglier name.
		Spec{Name: "x.flushall", Op: OpFlushAll, Format: FormatFlushAll},

		branch("beq", OpBeq),
		branch("bne", OpBne),
		branch("blt", OpBlt),
		branch("ble", OpBle),
		branch("bgt", OpBgt),
		branch("bge", OpBge),
		branch("bltu", OpBltu),
		branch("bleu", OpBleu),
		branch("bgtu", OpBgtu),
		branch("bgeu", OpBgeu),

		Spec{Name: "jal", Operands: []OperandKind{KindReg, KindCodeLabel},
			Op: OpJal, Format: FormatJump},
		Spec{Name: "jalr", Operands: rri, Op: OpJalr, Format: FormatJumpReg},

		Spec{Name: "rdcycle", Operands: []OperandKind{KindReg},
			Op: OpRdcycle, Format: FormatCycle},

		Spec{Name: "fence.i", Op: OpFenceI, Format: FormatSerial, Effect: EffectFence},
		Spec{Name: "ecall", Op: OpEcall, Format: FormatSerial, Effect: EffectEcall},
		Spec{Name: "ebreak", Op: OpEbreak, Format: FormatSerial, Effect: EffectEbreak},
	)
	return specs
}

func allAliases() []Alias {
	r := []OperandKind{KindReg}
	rr := []OperandKind{KindReg, KindReg}
	ri := []OperandKind{KindReg, KindImm}
	rl := []OperandKind{KindReg, KindCodeLabel}
	rm := []OperandKind{KindReg, KindMemRef}
	l := []OperandKind{KindCodeLabel}

	aliases := []Alias{
		// Legacy spellings of signed branches.
		{"blts", rrl, "blt", []AliasOperand{opIdx(0), opIdx(1), opIdx(2)}},
		{"bles", rrl, "ble", []AliasOperand{opIdx(0), opIdx(1), opIdx(2)}},
		{"bgts", rrl, "bgt", []AliasOperand{opIdx(0), opIdx(1), opIdx(2)}},
		{"bges", rrl, "bge", []AliasOperand{opIdx(0), opIdx(1), opIdx(2)}},

		// Data movement and arithmetic.
		{"li", ri, "addi", []AliasOperand{opIdx(0), opLit("zero"), opIdx(1)}},
		{"mv", rr, "addi", []AliasOperand{opIdx(0), opIdx(1), opLit("0")}},
		{"not", rr, "xori", []AliasOperand{opIdx(0), opIdx(1), opLit("-1")}},
		{"neg", rr, "sub", []AliasOperand{opIdx(0), opLit("zero"), opIdx(1)}},

		// Conditional sets.
		{"seqz", rr, "sltiu", []AliasOperand{opIdx(0), opIdx(1), opLit("1")}},
		{"snez", rr, "sltu", []AliasOperand{opIdx(0), opLit("zero"), opIdx(1)}},
		{"sltz", rr, "slt", []AliasOperand{opIdx(0), opIdx(1), opLit("zero")}},
		{"sgtz", rr, "slt", []AliasOperand{opIdx(0), opLit("zero"), opIdx(1)}},
	}

	// Proper spellings of memory accesses: lw rd, off(rs1).
	for _, name := range []string{"lw", "sw", "lh", "lhu", "sh", "lb", "lbu", "sb"} {
		aliases = append(aliases, Alias{name, rm, name,
			[]AliasOperand{opIdx(0), opIdx(1), opIdx(2)}})
	}
	aliases = append(aliases, Alias{"cbo.flush", []OperandKind{KindMemRef},
		"cbo.flush", []AliasOperand{opIdx(0), opIdx(1)}})

	// Compare-against-zero branches.
	for _, cc := range []string{"eq", "ne", "lt", "le", "gt", "ge", "ltu", "leu", "gtu", "geu"} {
		aliases = append(aliases, Alias{"b" + cc + "z", rl, "b" + cc,
			[]AliasOperand{opIdx(0), opLit("zero"), opIdx(1)}})
	}

	aliases = append(aliases,
		Alias{"jalr", rm, "jalr", []AliasOperand{opIdx(0), opIdx(1), opIdx(2)}},
		Alias{"j", l, "jal", []AliasOperand{opLit("zero"), opIdx(0)}},
		Alias{"jal", l, "jal", []AliasOperand{opLit("ra"), opIdx(0)}},
		Alias{"jr", r, "jalr", []AliasOperand{opLit("zero"), opIdx(0), opLit("0")}},
		Alias{"jalr", r, "jalr", []AliasOperand{opLit("ra"), opIdx(0), opLit("0")}},
		Alias{"ret", nil, "jalr", []AliasOperand{opLit("zero"), opLit("ra"), opLit("0")}},
		// call/tail are actually two-instruction sequences including AUIPC,
		// but a little assembler relaxation folds them into single jumps.
		Alias{"call", l, "jal", []AliasOperand{opLit("ra"), opIdx(0)}},
		Alias{"tail", l, "jal", []AliasOperand{opLit("zero"), opIdx(0)}},

		// Legacy spellings of special instructions.
		Alias{"flush", ri, "cbo.flush", []AliasOperand{opIdx(0), opIdx(1)}},
		Alias{"flush", []OperandKind{KindMemRef}, "cbo.flush",
			[]AliasOperand{opIdx(0), opIdx(1)}},
		Alias{"flushall", nil, "x.flushall", nil},
		Alias{"rdtsc", r, "rdcycle", []AliasOperand{opIdx(0)}},
		Alias{"fence", nil, "fence.i", nil},

		// Compiler-compatible spelling of the full cache flush.
		Alias{"th.dcache.ciall", nil, "x.flushall", nil},
	)

	return aliases
}

// Specs lists every base instruction, and Aliases every alternative spelling.
var (
	Specs   = allSpecs()
	Aliases = allAliases()

	specsByName   map[string]map[int]*Spec
	aliasesByName map[string]map[int]*Alias
)

func init() {
	specsByName = map[string]map[int]*Spec{}
	for i := range Specs {
		s := &Specs[i]
		m, ok := specsByName[s.Name]
		if !ok {
			m = map[int]*Spec{}
			specsByName[s.Name] = m
		}
		m[len(s.Operands)] = s
	}

	aliasesByName = map[string]map[int]*Alias{}
	for i := range Aliases {
		a := &Aliases[i]
		m, ok := aliasesByName[a.Name]
		if !ok {
			m = map[int]*Alias{}
			aliasesByName[a.Name] = m
		}
		m[len(a.Operands)] = a
	}
}

// Lookup finds the base instruction spec with the given name and arity.
func Lookup(name string, arity int) (*Spec, bool) {
	s, ok := specsByName[name][arity]
	return s, ok
}

// LookupAlias finds the alias with the given name and arity.
func LookupAlias(name string, arity int) (*Alias, bool) {
	a, ok := aliasesByName[name][arity]
	return a, ok
}

// Known reports whether any base instruction or alias uses the given name.
func Known(name string) bool {
	_, base := specsByName[name]
	_, alias := aliasesByName[name]
	return base || alias
}

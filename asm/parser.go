package asm

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/teem-cpu/teem/insts"
)

var (
	inputLineRE = regexp.MustCompile(
		// Label.
		`^(?:\s*(?P<label>[A-Za-z_.$][A-Za-z0-9_.$]*):)?` +
			// Machine instruction or assembler directive.
			`(?:\s*(?P<instr>[A-Za-z.][A-Za-z0-9_.]*)(?:\s+(?P<operands>.*?\S))?)?` +
			// Comment or trailing whitespace.
			`(?:\s*(?:#|//).*)?\s*$`)

	operandRE = regexp.MustCompile(
		// A bare word (with somewhat lax syntax) or a C-like string literal,
		// followed by either the next operand or the end of the list.
		`^\s*(?P<value>[^",\\\s]*|"(?:[^"\\]|\\.)*")\s*(?:,\s*|$)`)

	integerRE = regexp.MustCompile(`^-?(?:[0-9]+|0[bB][01]+|0[xX][0-9a-fA-F]+)$`)

	labelRefRE = regexp.MustCompile(
		`^(?:%(?P<modifier>\w+)\()?(?P<label>[A-Za-z0-9_.$]+)(?:\))?$`)

	memRefRE = regexp.MustCompile(
		`^(?P<offset>(?:%\w+\()?-?[A-Za-z0-9_.$]*(?:\))?)?` +
			`(?:\((?P<register>[A-Za-z0-9]+)\))?$`)
)

var sectionAliases = map[string]string{
	".sdata":  ".data",
	".bss":    ".data",
	".sbss":   ".data",
	".rodata": ".data",
	".note":   "",
}

// label records a defined assembly label.
type label struct {
	name    string
	section string
	offset  int
	line    int
}

// labelRef is an unresolved reference to a label, optionally restricted to a
// section and transformed by %lo/%hi.
type labelRef struct {
	name      string
	section   string
	transform string
	line      int
}

// operand is a parsed instruction operand: a concrete value or a label
// reference to be resolved during layout.
type operand struct {
	val int32
	ref *labelRef
}

// asmInst is the in-assembler representation of an instruction.
type asmInst struct {
	line int
	spec *insts.Spec
	ops  []operand
}

// dataItem is a chunk of the data section: literal bytes or a word-sized
// label reference.
type dataItem struct {
	bytes []byte
	ref   *labelRef
}

// Parser assembles TEEM assembly source into a Program.
type Parser struct {
	line    int
	section string

	text    []asmInst
	data    []dataItem
	dataLen int

	labels map[string]*label
}

// NewParser creates a parser positioned at the start of the .text section.
// A small amount of data bytes is reserved up front to account for programs
// that do not declare their data and for C programs that might dislike
// having variables whose address is NULL.
func NewParser() *Parser {
	p := &Parser{
		section: ".text",
		labels:  map[string]*label{},
	}
	p.emitData(dataItem{bytes: []byte{0, 0, 0, 0}})
	return p
}

// Parse assembles the given source into a ready-to-load Program.
func Parse(src string) (*Program, error) {
	p := NewParser()
	if err := p.Read(src); err != nil {
		return nil, err
	}
	return p.Finish()
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("line %d: %s", p.line, fmt.Sprintf(format, args...))
}

// Read assembles the given source string, accumulating sections and labels.
func (p *Parser) Read(src string) error {
	for i, line := range strings.Split(src, "\n") {
		p.line = i + 1
		m := inputLineRE.FindStringSubmatch(line)
		if m == nil {
			return p.errorf("invalid syntax: %q", line)
		}
		name, instr, rawOps := m[1], m[2], m[3]

		if name != "" {
			if err := p.makeLabel(name); err != nil {
				return err
			}
		}
		if instr == "" {
			continue
		}

		ops, err := p.readOperands(rawOps)
		if err != nil {
			return err
		}
		if strings.HasPrefix(instr, ".") {
			err = p.parseDirective(instr, ops)
		} else {
			err = p.parseInstruction(strings.ToLower(instr), ops)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) makeLabel(name string) error {
	if _, dup := p.labels[name]; dup {
		return p.errorf("duplicate label: %s", name)
	}
	if p.section == "" {
		return p.errorf("labels in an ignored section are not supported")
	}

	offset := p.dataLen
	if p.section == ".text" {
		offset = len(p.text) * 4
	}
	p.labels[name] = &label{name, p.section, offset, p.line}
	return nil
}

// readOperands splits a comma-separated operand list, decoding C-like string
// literals in place.
func (p *Parser) readOperands(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var result []string
	for len(s) > 0 {
		m := operandRE.FindStringSubmatch(s)
		if m == nil {
			return nil, p.errorf("invalid operand #%d: %q", len(result)+1, s)
		}
		raw := m[1]
		if strings.HasPrefix(raw, `"`) {
			decoded, err := unescapeString(raw)
			if err != nil {
				return nil, p.errorf("invalid operand #%d: %v", len(result)+1, err)
			}
			result = append(result, decoded)
		} else {
			result = append(result, raw)
		}
		s = s[len(m[0]):]
	}
	return result, nil
}

// unescapeString decodes a double-quoted C-like string literal.
func unescapeString(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("malformed string literal %q", s)
	}
	body := s[1 : len(s)-1]

	var out []byte
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("trailing backslash in %q", s)
		}
		switch body[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '0':
			out = append(out, 0)
		case '\\', '"', '\'':
			out = append(out, body[i])
		case 'x':
			if i+2 >= len(body) {
				return "", fmt.Errorf("truncated \\x escape in %q", s)
			}
			n, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("invalid \\x escape in %q", s)
			}
			out = append(out, byte(n))
			i += 2
		default:
			return "", fmt.Errorf("unsupported escape \\%c in %q", body[i], s)
		}
	}
	return string(out), nil
}

func (p *Parser) toInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		// Immediates are not range-checked beyond 32 bits, but very large
		// literals still need to parse; retry as unsigned.
		u, uerr := strconv.ParseUint(s, 0, 64)
		if uerr != nil {
			return 0, p.errorf("invalid integer %q", s)
		}
		return int64(u), nil
	}
	return v, nil
}

func (p *Parser) parseLabelRef(s, section string) (*labelRef, error) {
	m := labelRefRE.FindStringSubmatch(s)
	if m == nil {
		return nil, p.errorf("invalid label reference: %s", s)
	}
	transform, name := m[1], m[2]
	if integerRE.MatchString(name) {
		return nil, p.errorf("invalid label %s in label reference %s", name, s)
	}
	switch transform {
	case "", "hi", "lo":
	default:
		return nil, p.errorf("invalid transform %s in label reference %s", transform, s)
	}
	return &labelRef{name, section, transform, p.line}, nil
}

func (p *Parser) parseIntOrLabelRef(s, section string) (operand, error) {
	if integerRE.MatchString(s) {
		v, err := p.toInt(s)
		if err != nil {
			return operand{}, err
		}
		return operand{val: int32(uint32(v))}, nil
	}
	ref, err := p.parseLabelRef(s, section)
	if err != nil {
		return operand{}, err
	}
	return operand{ref: ref}, nil
}

// parseOperand parses one operand of the given kind. Memory references
// expand into two operands (base register, offset).
func (p *Parser) parseOperand(kind insts.OperandKind, s string) ([]operand, error) {
	switch kind {
	case insts.KindImm:
		op, err := p.parseIntOrLabelRef(s, "")
		if err != nil {
			return nil, err
		}
		return []operand{op}, nil

	case insts.KindReg:
		id, ok := insts.ParseReg(strings.ToLower(s))
		if !ok {
			return nil, p.errorf("invalid register name: %s", s)
		}
		return []operand{{val: int32(id)}}, nil

	case insts.KindCodeLabel, insts.KindDataLabel:
		section := ".text"
		if kind == insts.KindDataLabel {
			section = ".data"
		}
		ref, err := p.parseLabelRef(s, section)
		if err != nil {
			return nil, err
		}
		return []operand{{ref: ref}}, nil

	case insts.KindMemRef:
		m := memRefRE.FindStringSubmatch(s)
		if m == nil || s == "" {
			return nil, p.errorf("invalid memory operand: %s", s)
		}
		regName := m[2]
		if regName == "" {
			regName = "zero"
		}
		reg, err := p.parseOperand(insts.KindReg, regName)
		if err != nil {
			return nil, err
		}
		offset := operand{}
		if m[1] != "" {
			offset, err = p.parseIntOrLabelRef(m[1], "")
			if err != nil {
				return nil, err
			}
		}
		return append(reg, offset), nil
	}
	return nil, p.errorf("unhandled operand kind %d", kind)
}

func (p *Parser) parseInstruction(name string, rawOps []string) error {
	if p.section != ".text" {
		return p.errorf("CPU instructions in non-code sections are not supported")
	}
	if !insts.Known(name) {
		return p.errorf("unknown instruction type: %s", name)
	}

	spec, parsed, err := p.resolveSpelling(name, rawOps)
	if err != nil {
		return err
	}
	if len(parsed) != len(spec.Operands) {
		return p.errorf("invalid operand count for instruction %s: expected %d, got %d",
			name, len(spec.Operands), len(parsed))
	}

	p.text = append(p.text, asmInst{line: p.line, spec: spec, ops: parsed})
	return nil
}

// resolveSpelling parses the operands against the base instruction or alias
// with the given name and arity, expanding aliases into base instructions.
func (p *Parser) resolveSpelling(name string, rawOps []string) (*insts.Spec, []operand, error) {
	if spec, ok := insts.Lookup(name, len(rawOps)); ok {
		parsed, err := p.parseOperandList(spec.Operands, rawOps)
		return spec, parsed, err
	}

	alias, ok := insts.LookupAlias(name, len(rawOps))
	if !ok {
		return nil, nil, p.errorf("instruction type %s does not take %d operands",
			name, len(rawOps))
	}

	parsed, err := p.parseOperandList(alias.Operands, rawOps)
	if err != nil {
		return nil, nil, err
	}

	spec, ok := insts.Lookup(alias.Base, len(alias.BaseOps))
	if !ok {
		return nil, nil, p.errorf("alias %s expands to unknown instruction %s",
			name, alias.Base)
	}

	var expanded []operand
	for i, def := range alias.BaseOps {
		if def.Index >= 0 {
			expanded = append(expanded, parsed[def.Index])
			continue
		}
		lit, err := p.parseOperand(spec.Operands[i], def.Literal)
		if err != nil {
			return nil, nil, err
		}
		expanded = append(expanded, lit...)
	}
	return spec, expanded, nil
}

func (p *Parser) parseOperandList(kinds []insts.OperandKind, rawOps []string) ([]operand, error) {
	var parsed []operand
	for i, kind := range kinds {
		ops, err := p.parseOperand(kind, rawOps[i])
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, ops...)
	}
	return parsed, nil
}

func (p *Parser) emitData(item dataItem) {
	p.data = append(p.data, item)
	if item.ref != nil {
		p.dataLen += 4
	} else {
		p.dataLen += len(item.bytes)
	}
}

// Finish lays out the sections, resolves label references, and builds the
// final Program image.
func (p *Parser) Finish() (*Program, error) {
	// Put code and data a bit apart, but try to avoid three-digit
	// instruction addresses in small programs.
	dataAddr := uint32(0)
	textAddr := (uint32(p.dataLen) + 0x7f) &^ 0x7f

	resolve := func(ref *labelRef) (uint32, error) {
		l, ok := p.labels[ref.name]
		if !ok {
			return 0, fmt.Errorf("line %d: undefined label %s", ref.line, ref.name)
		}
		if ref.section != "" && ref.section != l.section {
			return 0, fmt.Errorf("line %d: expected label %s to be in section %s, but it is in %s",
				ref.line, ref.name, ref.section, l.section)
		}

		base := dataAddr
		if l.section == ".text" {
			base = textAddr
		}
		value := base + uint32(l.offset)
		switch ref.transform {
		case "lo":
			value &= (1 << 12) - 1
		case "hi":
			value >>= 12
		}
		return value, nil
	}

	prog := &Program{
		TextAddr: textAddr,
		DataAddr: dataAddr,
		Symbols:  map[string]uint32{},
	}

	for idx, ai := range p.text {
		resolved := make([]int32, len(ai.ops))
		for i, op := range ai.ops {
			if op.ref == nil {
				resolved[i] = op.val
				continue
			}
			v, err := resolve(op.ref)
			if err != nil {
				return nil, err
			}
			resolved[i] = int32(v)
		}
		inst := ai.spec.Build(textAddr+uint32(idx)*4, resolved)
		prog.Code = append(prog.Code, *inst)
	}

	for _, item := range p.data {
		if item.ref == nil {
			prog.Data = append(prog.Data, item.bytes...)
			continue
		}
		v, err := resolve(item.ref)
		if err != nil {
			return nil, err
		}
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], v)
		prog.Data = append(prog.Data, word[:]...)
	}

	for name, l := range p.labels {
		base := dataAddr
		if l.section == ".text" {
			base = textAddr
		}
		prog.Symbols[name] = base + uint32(l.offset)
	}

	prog.Entry = textAddr
	if start, ok := prog.Symbols["_start"]; ok {
		if l := p.labels["_start"]; l.section == ".text" {
			prog.Entry = start
		}
	}
	return prog, nil
}

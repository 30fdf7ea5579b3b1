package asm

import (
	"encoding/binary"
	"strings"
)

// ignoredDirectives are accepted for compatibility with compiler output and
// have no effect.
var ignoredDirectives = map[string]bool{
	".file": true, ".globl": true, ".weak": true, ".local": true,
	".ident": true, ".type": true, ".size": true, ".attribute": true,
	".addrsig": true, ".addrsig_sym": true,
}

func (p *Parser) parseDirective(name string, ops []string) error {
	if ignoredDirectives[name] {
		return nil
	}

	switch name {
	case ".text", ".data", ".bss", ".section":
		return p.switchSection(name, ops)

	case ".string", ".asciz":
		return p.emitStrings(ops, true)
	case ".ascii":
		return p.emitStrings(ops, false)

	case ".byte":
		return p.emitInts(ops, 1)
	case ".2byte", ".half", ".short":
		return p.emitInts(ops, 2)
	case ".4byte", ".word", ".long":
		return p.emitWords(ops)
	case ".8byte", ".dword", ".quad":
		return p.emitInts(ops, 8)

	case ".zero":
		if len(ops) != 1 {
			return p.errorf("directive .zero takes exactly one operand")
		}
		n, err := p.toInt(ops[0])
		if err != nil {
			return err
		}
		return p.emitBytes(make([]byte, n))

	case ".p2align", ".balign":
		return p.align(name, ops)

	case ".comm":
		return p.comm(ops)
	}

	return p.errorf("unrecognized directive %s", name)
}

func (p *Parser) switchSection(name string, ops []string) error {
	section := name
	if name == ".section" {
		if len(ops) < 1 {
			return p.errorf("too few operands for directive .section")
		}
		raw := ops[0]
		if !strings.HasPrefix(raw, ".") {
			return p.errorf("unsupported nonstandard section name: %s", raw)
		}
		section = raw
		if dot := strings.Index(raw[1:], "."); dot != -1 {
			section = raw[:dot+1]
		}
	}

	if mapped, ok := sectionAliases[section]; ok {
		section = mapped
	}
	switch section {
	case ".text", ".data", "":
	default:
		return p.errorf("unsupported section type: %s", section)
	}

	p.section = section
	return nil
}

func (p *Parser) emitBytes(data []byte) error {
	if p.section == "" {
		return p.errorf("data in an ignored section are not supported")
	}
	if p.section == ".text" {
		return p.errorf("data in the .text section are not supported")
	}
	p.emitData(dataItem{bytes: data})
	return nil
}

func (p *Parser) emitStrings(ops []string, terminate bool) error {
	for _, text := range ops {
		data := []byte(text)
		if terminate {
			data = append(data, 0)
		}
		if err := p.emitBytes(data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) emitInts(ops []string, width int) error {
	for _, op := range ops {
		v, err := p.toInt(op)
		if err != nil {
			return err
		}
		buf := make([]byte, width)
		switch width {
		case 1:
			buf[0] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(buf, uint16(v))
		case 8:
			binary.LittleEndian.PutUint64(buf, uint64(v))
		}
		if err := p.emitBytes(buf); err != nil {
			return err
		}
	}
	return nil
}

// emitWords emits word-sized data; operands may be label references, which
// are resolved during layout.
func (p *Parser) emitWords(ops []string) error {
	for _, op := range ops {
		parsed, err := p.parseIntOrLabelRef(op, "")
		if err != nil {
			return err
		}
		if parsed.ref != nil {
			if p.section != ".data" {
				return p.errorf("data in the .text section are not supported")
			}
			p.emitData(dataItem{ref: parsed.ref})
			continue
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(parsed.val))
		if err := p.emitBytes(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) align(name string, ops []string) error {
	if len(ops) < 1 || len(ops) > 3 {
		return p.errorf("directive %s takes one to three operands", name)
	}

	alignment, err := p.toInt(ops[0])
	if err != nil {
		return err
	}
	if name == ".p2align" {
		alignment = 1 << uint(alignment)
	}

	fill := int64(0)
	if len(ops) > 1 {
		if fill, err = p.toInt(ops[1]); err != nil {
			return err
		}
	}
	maximum := int64(-1)
	if len(ops) > 2 {
		if maximum, err = p.toInt(ops[2]); err != nil {
			return err
		}
	}

	return p.alignSection(alignment, byte(fill), maximum)
}

func (p *Parser) alignSection(alignment int64, fill byte, maximum int64) error {
	if alignment == 0 {
		return nil
	}

	if p.section == ".text" {
		if alignment%4 != 0 {
			return p.errorf("code sections should be aligned to a multiple of 4")
		}
		return nil
	}
	if p.section != ".data" {
		return nil
	}

	skip := (-int64(p.dataLen)) % alignment
	if skip < 0 {
		skip += alignment
	}
	if maximum >= 0 && skip > maximum {
		return nil
	}

	pad := make([]byte, skip)
	for i := range pad {
		pad[i] = fill
	}
	p.emitData(dataItem{bytes: pad})
	return nil
}

// comm reserves a zero-filled, aligned block in .data and labels it. With no
// explicit alignment, the largest power of two not exceeding the size is
// used, capped at 16.
func (p *Parser) comm(ops []string) error {
	if len(ops) < 2 || len(ops) > 3 {
		return p.errorf("directive .comm takes two or three operands")
	}
	symbol := ops[0]
	size, err := p.toInt(ops[1])
	if err != nil {
		return err
	}

	alignment := int64(-1)
	if len(ops) > 2 {
		if alignment, err = p.toInt(ops[2]); err != nil {
			return err
		}
	}
	if alignment < 0 {
		alignment = 1
		for 2*alignment <= size && alignment < 16 {
			alignment *= 2
		}
	}

	prev := p.section
	p.section = ".data"
	if err := p.alignSection(alignment, 0, -1); err != nil {
		p.section = prev
		return err
	}
	if err := p.makeLabel(symbol); err != nil {
		p.section = prev
		return err
	}
	err = p.emitBytes(make([]byte, size))
	p.section = prev
	return err
}

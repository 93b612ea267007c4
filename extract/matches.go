package extract

import (
	"fmt"

	"btndump/process"
	"btndump/ripaddr"
)

// Match is one occurrence of the signature and the address its instruction resolves to
type Match struct {
	Offset  int
	Address process.ProcessMemoryAddress
	Head    process.ProcessMemoryAddress
	Err     error // set when the instruction at the match does not resolve
}

// Scan is the module snapshot together with every signature match in it
type Scan struct {
	Module   process.Module
	Snapshot []byte
	Matches  []Match
}

// Matches reports every occurrence of the signature instead of only the first. It is a
// diagnostic for checking a profile against a new build and does not walk the list.
func (e *Extractor) Matches(target process.ModuleReader) (*Scan, error) {
	m, err := target.GetModule(e.opts.ModuleName)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", e.opts.ModuleName, err)
	}

	snapshot, err := target.ReadModule(m)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", m.Name, err)
	}

	scan := &Scan{Module: m, Snapshot: snapshot}
	for _, offset := range e.opts.Pattern.ScanAll(snapshot) {
		match := Match{Offset: offset, Address: m.Base.Add(process.ProcessMemorySize(offset))}
		match.Head, match.Err = e.resolve(snapshot, offset, m.Base)
		scan.Matches = append(scan.Matches, match)
	}

	e.log.Infoln("Signature", e.opts.Pattern.String(), "matched", len(scan.Matches), "times in", m.Name)

	return scan, nil
}

// resolve computes the address the instruction at offset refers to, decoding the
// instruction when no fixed geometry is configured
func (e *Extractor) resolve(snapshot []byte, offset int, base process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	inst := e.opts.Instruction
	if inst == (ripaddr.Instruction{}) {
		var err error
		inst, err = ripaddr.Decode(snapshot, offset)
		if err != nil {
			return 0, fmt.Errorf("decode at 0x%x: %w", offset, err)
		}
		e.log.Debugln("Decoded instruction, displacement at", inst.DisplacementOffset, "length", inst.Length)
	}

	head, err := ripaddr.Resolve(snapshot, offset, base, inst)
	if err != nil {
		return 0, fmt.Errorf("resolve at 0x%x: %w", offset, err)
	}
	return head, nil
}

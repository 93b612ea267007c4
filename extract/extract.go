// Package extract ties the pieces together: find the module, scan its snapshot for the
// signature, resolve the list head the matched instruction points at, walk the list and
// sort the result. A run either returns every record or an error, never a partial list.
package extract

import (
	"fmt"

	"btndump/config"
	"btndump/linkedlist"
	"btndump/process"
	"btndump/record"
	"btndump/ripaddr"
	"btndump/signature"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Options is one extraction recipe. A zero Instruction decodes the geometry at the match.
type Options struct {
	ModuleName    string
	Pattern       signature.Pattern
	Instruction   ripaddr.Instruction
	Layout        linkedlist.Layout
	MaxNodes      int
	MaxNameLength process.ProcessMemorySize
}

// OptionsFromProfile converts a validated profile, filling unset limits with defaults
func OptionsFromProfile(p config.Profile) (Options, error) {
	if err := p.Validate(); err != nil {
		return Options{}, err
	}

	pattern, err := signature.Parse(p.Pattern)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		ModuleName:    p.Module,
		Pattern:       pattern,
		Layout:        p.Layout,
		MaxNodes:      p.MaxNodes,
		MaxNameLength: process.ProcessMemorySize(p.MaxNameLength),
	}

	if !p.AutoInstruction() {
		opts.Instruction = p.Instruction()
	}

	if opts.MaxNodes == 0 {
		opts.MaxNodes = linkedlist.DefaultMaxNodes
	}

	if opts.MaxNameLength == 0 {
		opts.MaxNameLength = linkedlist.DefaultMaxNameLength
	}

	return opts, nil
}

// Result is a successful extraction
type Result struct {
	Module  process.Module
	Match   int                          // offset of the signature inside the module
	Head    process.ProcessMemoryAddress // address holding the list head pointer
	Records []record.Record
}

type Extractor struct {
	opts Options
	log  *logger.Logger
}

func New(opts Options) *Extractor {
	return &Extractor{
		opts: opts,
		log:  logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "extract")),
	}
}

// Run snapshots the configured module from target and extracts from it
func (e *Extractor) Run(target process.Target) (*Result, error) {
	m, err := target.GetModule(e.opts.ModuleName)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", e.opts.ModuleName, err)
	}

	e.log.Infoln("Module", m.Name, "at", m.Base.ToString(), "size", m.Size.ToString())

	snapshot, err := target.ReadModule(m)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", m.Name, err)
	}

	return e.FromSnapshot(target, m, snapshot)
}

// FromSnapshot scans an existing copy of module m. Node reads go through reader.
func (e *Extractor) FromSnapshot(reader process.MemoryReader, m process.Module, snapshot []byte) (*Result, error) {
	match, err := e.opts.Pattern.Scan(snapshot)
	if err != nil {
		return nil, fmt.Errorf("scan %s for %s: %w", m.Name, e.opts.Pattern.String(), err)
	}

	if matches := e.opts.Pattern.ScanAll(snapshot); len(matches) > 1 {
		e.log.Warn("Signature matched ", len(matches), " times, using the first at offset ", match)
	}

	head, err := e.resolve(snapshot, match, m.Base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}

	e.log.Infoln("Signature at", m.Base.Add(process.ProcessMemorySize(match)).ToString(), "list head at", head.ToString())

	walker := linkedlist.New(reader, m.Base, e.opts.Layout)
	if e.opts.MaxNodes > 0 {
		walker.MaxNodes = e.opts.MaxNodes
	}
	if e.opts.MaxNameLength > 0 {
		walker.MaxNameLength = e.opts.MaxNameLength
	}

	records, err := walker.Walk(head)
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	records = record.Sort(records)
	for _, r := range records {
		e.log.Debugln("Button", r.Name, "@", r.Absolute(m.Base).ToString(), "offset", fmt.Sprintf("0x%x", r.Value))
	}

	e.log.Infoln("Extracted", len(records), "records")

	return &Result{
		Module:  m,
		Match:   match,
		Head:    head,
		Records: records,
	}, nil
}

package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"example.com/mdiogate/internal/mdio"
)

func intPtr(v int) *int { return &v }

func (e *Engine) RegisterBuiltins() {
	e.Register("CheckDecodePreflight", CheckDecodePreflight)
	e.Register("CheckFramesPresent", CheckFramesPresent)
	e.Register("CheckOpcodeExtensions", CheckOpcodeExtensions)
	e.Register("CheckWriteTurnaround", CheckWriteTurnaround)
	e.Register("CheckAddressRange", CheckAddressRange)
}

func newDiag(ctx *Context, rule Rule, sev Severity, msg string) Diagnostic {
	return Diagnostic{
		Ts: time.Now(), Capture: ctx.CaptureName, RuleId: rule.RuleId,
		Severity: sev, Message: msg, Refs: rule.Refs,
	}
}

// CheckDecodePreflight flags captures the decoder refused to scan. A preflight
// rejection leaves exactly one diagnostic event in the decode result.
func CheckDecodePreflight(ctx *Context, rule Rule) (Diagnostic, error) {
	for _, ev := range ctx.Events {
		if ev.Category != mdio.Diagnostic {
			continue
		}
		d := newDiag(ctx, rule, ERROR, "decode rejected: "+ev.Label)
		d.StartSample = intPtr(ev.StartSample)
		d.EndSample = intPtr(ev.EndSample)
		return d, nil
	}
	return newDiag(ctx, rule, INFO, "decode preflight ok"), nil
}

// CheckFramesPresent warns when the capture decoded but produced no complete
// management frame, which usually means the bus was idle or mis-probed.
func CheckFramesPresent(ctx *Context, rule Rule) (Diagnostic, error) {
	complete := 0
	for _, tx := range ctx.Transactions() {
		if tx.Complete {
			complete++
		}
	}
	if complete == 0 {
		return newDiag(ctx, rule, WARN, "no complete frames decoded"), nil
	}
	return newDiag(ctx, rule, INFO, fmt.Sprintf("%d complete frames decoded", complete)), nil
}

// CheckOpcodeExtensions reports frames carrying opcodes outside the Clause 22
// read/write pair. Such frames decode with the write field layout.
func CheckOpcodeExtensions(ctx *Context, rule Rule) (Diagnostic, error) {
	seen := make(map[string]bool)
	for _, tx := range ctx.Transactions() {
		if tx.Opcode == "" || tx.Opcode == "R" || tx.Opcode == "W" {
			continue
		}
		seen[tx.Opcode] = true
	}
	if len(seen) == 0 {
		return newDiag(ctx, rule, INFO, "all opcodes are standard read/write"), nil
	}
	ops := make([]string, 0, len(seen))
	for op := range seen {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return newDiag(ctx, rule, WARN, "vendor opcodes observed: "+strings.Join(ops, ", ")), nil
}

// CheckWriteTurnaround verifies the first turnaround bit of every complete
// write frame. Clause 22 requires the master to drive "10" there; the decoder
// only reports the first bit, which must read as 1.
func CheckWriteTurnaround(ctx *Context, rule Rule) (Diagnostic, error) {
	bad := 0
	var first *mdio.Transaction
	for i, tx := range ctx.Transactions() {
		if tx.IsRead || !tx.Complete || tx.Turnaround == "" {
			continue
		}
		if tx.Turnaround != "1" {
			bad++
			if first == nil {
				first = &ctx.Transactions()[i]
			}
		}
	}
	if bad == 0 {
		return newDiag(ctx, rule, INFO, "write turnaround bits nominal"), nil
	}
	d := newDiag(ctx, rule, WARN, fmt.Sprintf("%d write frames with turnaround bit low", bad))
	d.StartSample = intPtr(first.StartSample)
	d.EndSample = intPtr(first.EndSample)
	return d, nil
}

// CheckAddressRange surveys addressed PHYs and flags vendor-opcode frames
// aimed at PHY 0 register 0, a common symptom of a floating data line.
func CheckAddressRange(ctx *Context, rule Rule) (Diagnostic, error) {
	phys := make(map[string]bool)
	suspect := 0
	for _, tx := range ctx.Transactions() {
		if tx.PhyAddr == "" {
			continue
		}
		phys[tx.PhyAddr] = true
		vendor := tx.Opcode != "R" && tx.Opcode != "W"
		if vendor && tx.PhyAddr == "10'0" && tx.RegAddr == "10'0" {
			suspect++
		}
	}
	if suspect > 0 {
		return newDiag(ctx, rule, WARN, fmt.Sprintf("%d vendor-opcode frames address phy 0 reg 0", suspect)), nil
	}
	if len(phys) == 0 {
		return newDiag(ctx, rule, INFO, "no phy addresses decoded"), nil
	}
	list := make([]string, 0, len(phys))
	for p := range phys {
		list = append(list, p)
	}
	sort.Strings(list)
	return newDiag(ctx, rule, INFO, "phy addresses: "+strings.Join(list, ", ")), nil
}

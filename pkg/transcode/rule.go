// Package transcode selects the per-modality encoding rule for a received
// object and applies it after checking the target encoding against the
// object's pixel format.
package transcode

import (
	"fmt"
	"strings"
)

// AllModalities is the modality of the fallback rule.
const AllModalities = "all"

// Action names accepted in configuration.
const (
	ActionNone       = ""
	ActionCompress   = "compress"
	ActionDecompress = "decompress"
)

// Rule is one configured modality rule.
type Rule struct {
	Modality             string
	Action               string
	Ratio                string
	OutputTransferSyntax string
}

// RuleSet is a named collection of rules, at most one per modality.
type RuleSet struct {
	Name  string
	Rules []Rule
}

// Validate checks that no modality appears twice and that every action is known.
func (rs *RuleSet) Validate() error {
	seen := make(map[string]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		if strings.TrimSpace(r.Modality) == "" {
			return fmt.Errorf("rule set %q: rules[%d]: modality is required", rs.Name, i)
		}
		if seen[r.Modality] {
			return fmt.Errorf("rule set %q: duplicate rule for modality %q", rs.Name, r.Modality)
		}
		seen[r.Modality] = true

		switch r.Action {
		case ActionNone, ActionCompress, ActionDecompress:
		default:
			return fmt.Errorf("rule set %q: modality %q: unknown action %q", rs.Name, r.Modality, r.Action)
		}
	}
	return nil
}

// Kind tags the Effective variant.
type Kind int

const (
	KindNoOp Kind = iota
	KindCompress
	KindDecompress
)

func (k Kind) String() string {
	switch k {
	case KindCompress:
		return "compress"
	case KindDecompress:
		return "decompress"
	default:
		return "noop"
	}
}

// Effective is the rule chosen for one object: NoOp, Compress{Ratio, Target}
// or Decompress{Target}. Target is the configured transfer syntax name or
// UID and is resolved when the rule is applied.
type Effective struct {
	Kind Kind
	// Modality is the rule key that matched ("" for the implicit no-op).
	Modality string
	Ratio    string
	Target   string
}

// NoOp leaves the encoding unchanged.
func NoOp() Effective { return Effective{Kind: KindNoOp} }

// Compress switches to target after validation.
func Compress(ratio, target string) Effective {
	return Effective{Kind: KindCompress, Ratio: ratio, Target: target}
}

// Decompress switches to an uncompressed target.
func Decompress(target string) Effective {
	return Effective{Kind: KindDecompress, Target: target}
}

// Effective converts a configured rule into its variant.
func (r Rule) Effective() Effective {
	var e Effective
	switch r.Action {
	case ActionCompress:
		e = Compress(r.Ratio, r.OutputTransferSyntax)
	case ActionDecompress:
		e = Decompress(r.OutputTransferSyntax)
	default:
		e = NoOp()
	}
	e.Modality = r.Modality
	return e
}

func (e Effective) String() string {
	switch e.Kind {
	case KindCompress:
		return fmt.Sprintf("compress(ratio=%q, target=%q)", e.Ratio, e.Target)
	case KindDecompress:
		return fmt.Sprintf("decompress(target=%q)", e.Target)
	default:
		return "noop"
	}
}

// Select picks the rule for modality.
//
// Precedence:
//  1. the rule whose Modality equals modality
//  2. the "all" rule
//  3. the no-op rule
//
// A nil rule set selects the no-op rule.
func Select(modality string, rs *RuleSet) Effective {
	if rs == nil {
		return NoOp()
	}

	var fallback *Rule
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.Modality == modality {
			return r.Effective()
		}
		if r.Modality == AllModalities && fallback == nil {
			fallback = r
		}
	}

	if fallback != nil {
		return fallback.Effective()
	}
	return NoOp()
}

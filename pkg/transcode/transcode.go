package transcode

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittodicom/pkg/dicom"
)

// State is where an object ends up in the transcode state machine.
//
// The three rejected states all leave the object in its received encoding;
// they differ only in why the rule could not be applied, so that metrics
// and logs can tell an illegal pixel format from a deployment that lacks a
// codec for the target encoding.
type State int

const (
	StateNoOp State = iota
	StateValidatedCompress
	StateValidatedDecompress

	// StateRejectedIllegal: the pixel format or target is not allowed.
	StateRejectedIllegal

	// StateRejectedNoCodec: the rule is legal but no codec is registered
	// for the (current, target) pair.
	StateRejectedNoCodec

	// StateRejectedCodecFailure: a registered codec returned an error.
	StateRejectedCodecFailure
)

func (s State) String() string {
	switch s {
	case StateValidatedCompress:
		return "validated_compress"
	case StateValidatedDecompress:
		return "validated_decompress"
	case StateRejectedIllegal:
		return "rejected_illegal"
	case StateRejectedNoCodec:
		return "rejected_no_codec"
	case StateRejectedCodecFailure:
		return "rejected_codec_failure"
	default:
		return "noop"
	}
}

// Options tunes the executor.
type Options struct {
	// RejectCompressedSource refuses to compress an object whose encoding is
	// already a different compressed one. Off by default: the object is then
	// switched directly, which some codecs cannot do without decoding first.
	RejectCompressedSource bool
}

// Outcome records the decision taken for one object.
type Outcome struct {
	State   State
	Rule    Effective
	Current dicom.TransferSyntax
	Final   dicom.TransferSyntax
	// Err holds the reason of a rejection. Rejections are recoverable: the
	// object keeps its original encoding.
	Err error
	// Warnings lists fallbacks that were taken without rejecting the rule.
	Warnings []string
	// Switched is set by Apply once the object's encoding was changed.
	Switched bool
}

// Rejected reports whether the rule was not applied, for any reason.
func (o Outcome) Rejected() bool {
	switch o.State {
	case StateRejectedIllegal, StateRejectedNoCodec, StateRejectedCodecFailure:
		return true
	}
	return false
}

// Reason returns a human-readable rejection reason, or "".
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func reject(o Outcome, err error) Outcome {
	return rejectAs(o, StateRejectedIllegal, err)
}

func rejectAs(o Outcome, state State, err error) Outcome {
	o.State = state
	o.Final = o.Current
	o.Err = err
	return o
}

// Plan decides the final encoding for an object without touching it.
//
// Decompress always succeeds; an unknown or compressed target falls back to
// implicit VR little endian with a warning. Compress is rejected when the
// target is unknown, the pixel format does not fit it, or the source is
// already compressed and opts.RejectCompressedSource is set.
func Plan(e Effective, pf dicom.PixelFormat, current dicom.TransferSyntax, opts Options) Outcome {
	o := Outcome{State: StateNoOp, Rule: e, Current: current, Final: current}

	switch e.Kind {
	case KindDecompress:
		target, ok := dicom.LookupTransferSyntax(e.Target)
		if !ok || !target.IsUncompressed() {
			o.Warnings = append(o.Warnings, fmt.Sprintf(
				"decompress target %q is not an uncompressed encoding, using %s",
				e.Target, dicom.ImplicitVRLittleEndian.Name))
			target = dicom.ImplicitVRLittleEndian
		}
		o.State = StateValidatedDecompress
		o.Final = target
		return o

	case KindCompress:
		target, ok := dicom.LookupTransferSyntax(e.Target)
		if !ok {
			return reject(o, fmt.Errorf("%w: %q", ErrUnsupportedTarget, e.Target))
		}
		if err := ValidatePixelFormat(target, pf); err != nil {
			return reject(o, err)
		}

		if !current.IsUncompressed() && current != target {
			if opts.RejectCompressedSource {
				return reject(o, fmt.Errorf("%w: %s cannot be re-encoded to %s",
					ErrCompressedSource, current, target.Name))
			}
			o.Warnings = append(o.Warnings, fmt.Sprintf(
				"switching directly from compressed %s to %s", current, target.Name))
		}

		o.State = StateValidatedCompress
		o.Final = target
		return o

	default:
		return o
	}
}

// Transcodable is the object access Apply needs.
type Transcodable interface {
	dicom.PixelAttributes
	TransferSyntax() dicom.TransferSyntax
	ChangeTransferSyntax(ts dicom.TransferSyntax) error
}

// Apply plans e for obj and switches its encoding when the final encoding
// differs from the current one.
//
// Parameters:
//   - e: The effective rule selected for the object's modality
//   - obj: The object to transcode; only touched when the switch succeeds
//   - opts: Executor policy (strict handling of compressed sources)
//
// Returns:
//   - Outcome with State StateNoOp, StateValidatedCompress or
//     StateValidatedDecompress when the rule was applied
//   - StateRejectedIllegal when Plan refused the rule
//   - StateRejectedNoCodec when no codec is registered for the switch
//     (Err wraps dicom.ErrNoCodec)
//   - StateRejectedCodecFailure when the codec itself failed
//
// A rejected outcome always leaves obj in its original encoding.
func Apply(e Effective, obj Transcodable, opts Options) Outcome {
	o := Plan(e, dicom.ReadPixelFormat(obj), obj.TransferSyntax(), opts)
	if o.Final == o.Current {
		return o
	}

	if err := obj.ChangeTransferSyntax(o.Final); err != nil {
		state := StateRejectedCodecFailure
		if errors.Is(err, dicom.ErrNoCodec) {
			state = StateRejectedNoCodec
		}
		return rejectAs(o, state, fmt.Errorf("switch to %s: %w", o.Final.Name, err))
	}

	o.Switched = true
	return o
}

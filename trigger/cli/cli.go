// Package cli implements the reference CLI trigger driver of spec §6: a
// thin consumer, outside the core, that (a) builds an Invocation from
// command-line-supplied input, (b) submits it, (c) streams the output, and
// (d) maps the final packet set to a process exit code. Grounded on the
// original's wick-runtime/src/triggers/cli.rs.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/wickrt/wick/interpreter"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
	"github.com/wickrt/wick/transaction"
)

// Driver runs one schematic invocation per call, reading its input from an
// io.Reader and writing its output to an io.Writer.
type Driver struct {
	Runtime *interpreter.Runtime
}

// New builds a Driver over an already-constructed runtime.
func New(rt *interpreter.Runtime) *Driver {
	return &Driver{Runtime: rt}
}

// Run submits one invocation of schematicName, feeding everything read from
// in as a single data packet on inputPort followed by its done packet (a
// CLI invocation has exactly one input: stdin), then writes each resulting
// packet to out and returns the process exit code its final packet set
// implies: 0 on a clean finish with no error packets anywhere in the
// result, 1 otherwise.
func (d *Driver) Run(ctx context.Context, schematicName, inputPort string, in io.Reader, out io.Writer) (int, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return 1, fmt.Errorf("trigger/cli: read input: %w", err)
	}

	var input []packet.Packet
	if len(raw) != 0 {
		input = append(input, packet.Data(inputPort, raw))
	}
	input = append(input, packet.Done(inputPort))

	packets, status, execErr := d.Runtime.Exec(ctx, schematicName, input, operation.Inherent{})
	for _, p := range packets {
		writePacket(out, p)
	}

	code := exitCode(status, packets)
	if execErr != nil {
		return code, execErr
	}
	return code, nil
}

// exitCode reduces a transaction's final status and packet set to a process
// exit code: anything but a clean Finished with no error/fatal packet is a
// failure (spec §6: "return an exit code drawn from the transaction's final
// packet set").
func exitCode(status transaction.Status, packets []packet.Packet) int {
	if status != transaction.Finished {
		return 1
	}
	for _, p := range packets {
		if p.IsError() || p.IsFatal() {
			return 1
		}
	}
	return 0
}

func writePacket(out io.Writer, p packet.Packet) {
	switch {
	case p.IsDone():
		return
	case p.IsError():
		fmt.Fprintf(out, "%s: error: %s\n", p.Port(), p.Payload().Message())
	case p.HasData():
		fmt.Fprintf(out, "%s: %s\n", p.Port(), p.Payload().Bytes())
	}
}

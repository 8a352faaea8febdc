// Package http implements the reference HTTP trigger driver of spec §6:
// one POST route per configured trigger, each building an Invocation from
// the request body, submitting it, and mapping the resulting packet set
// to an HTTP response. Grounded on the original's
// wick-runtime/src/triggers/http/{routers,component_utils}.rs.
package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wickrt/wick/interpreter"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
	"github.com/wickrt/wick/transaction"
)

// Driver submits one schematic invocation per HTTP request.
type Driver struct {
	Runtime *interpreter.Runtime
}

// New builds a Driver over an already-constructed runtime.
func New(rt *interpreter.Runtime) *Driver {
	return &Driver{Runtime: rt}
}

// Register wires path as a POST route invoking schematicName: the request
// body becomes a single data packet on inputPort, followed by its done
// packet.
func (d *Driver) Register(r gin.IRouter, path, schematicName, inputPort string) {
	r.POST(path, d.handle(schematicName, inputPort))
}

func (d *Driver) handle(schematicName, inputPort string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reading request body: " + err.Error()})
			return
		}

		var input []packet.Packet
		if len(raw) != 0 {
			input = append(input, packet.Data(inputPort, raw))
		}
		input = append(input, packet.Done(inputPort))

		packets, status, execErr := d.Runtime.Exec(c.Request.Context(), schematicName, input, operation.Inherent{})
		code, body := response(status, packets, execErr)
		c.JSON(code, body)
	}
}

// response reduces a completed invocation's status and packet set to an
// HTTP status code and JSON body, grouping output packets by port name.
func response(status transaction.Status, packets []packet.Packet, execErr error) (int, gin.H) {
	if execErr != nil {
		return http.StatusInternalServerError, gin.H{"error": execErr.Error()}
	}

	outputs := make(map[string][]json.RawMessage)
	failed := false
	for _, p := range packets {
		switch {
		case p.IsDone():
			continue
		case p.IsError() || p.IsFatal():
			failed = true
			outputs[p.Port()] = append(outputs[p.Port()], json.RawMessage(fmt.Sprintf("%q", p.Payload().Message())))
		case p.HasData():
			outputs[p.Port()] = append(outputs[p.Port()], json.RawMessage(p.Payload().Bytes()))
		}
	}

	code := http.StatusOK
	if failed || status != transaction.Finished {
		code = http.StatusUnprocessableEntity
	}
	return code, gin.H{"outputs": outputs}
}

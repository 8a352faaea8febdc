// Package keyvalue implements the Redis-backed keyvalue::get/set/delete/
// exists/list_remove operation set, grounded on
// provider-keyvalue-redis/src/components/{exists,list_remove}.rs for the
// operation names and return conventions. Every operation decodes one JSON
// object off its "input" port (the convention components/core already
// established for pluck/switch) carrying a "key" field and, where needed,
// a "value" field, rather than the original's separate named input ports.
package keyvalue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
	"github.com/wickrt/wick/wicklog"
)

// Handler implements registry.ComponentHandler for the "keyvalue"
// namespace. client is any *redis.Client-shaped command runner; tests
// point it at a miniredis instance, following store/redis_test.go's
// pattern.
type Handler struct {
	client *redis.Client
	log    wicklog.Logger
}

// NewHandler builds the keyvalue namespace's component handler over an
// already-configured Redis client.
func NewHandler(client *redis.Client, log wicklog.Logger) *Handler {
	return &Handler{client: client, log: log}
}

var signatures = map[string]graph.Signature{
	"get": {
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	},
	"set": {
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	},
	"delete": {
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	},
	"exists": {
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	},
	"list_remove": {
		Inputs:  []graph.Port{{Name: "input", Type: "any"}},
		Outputs: []graph.Port{{Name: "output", Type: "any"}},
	},
}

// Signature implements registry.ComponentHandler.
func (h *Handler) Signature(opName string) (graph.Signature, bool) {
	sig, ok := signatures[opName]
	return sig, ok
}

// Contract implements registry.ComponentHandler.
func (h *Handler) Contract(opName string) (operation.Contract, bool) {
	switch opName {
	case "get":
		return operation.Func(h.get), true
	case "set":
		return operation.Func(h.set), true
	case "delete":
		return operation.Func(h.delete), true
	case "exists":
		return operation.Func(h.exists), true
	case "list_remove":
		return operation.Func(h.listRemove), true
	default:
		return nil, false
	}
}

type keyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func decodeKeyValue(p packet.Packet) (keyValue, error) {
	var kv keyValue
	if !p.HasData() {
		return kv, fmt.Errorf("keyvalue: packet on %q carries no payload", p.Port())
	}
	if err := json.Unmarshal(p.Payload().Bytes(), &kv); err != nil {
		return kv, fmt.Errorf("keyvalue: decode input: %w", err)
	}
	if kv.Key == "" {
		return kv, fmt.Errorf("keyvalue: input object missing required 'key' field")
	}
	return kv, nil
}

func encodeOut(port string, v any) packet.Packet {
	b, err := json.Marshal(v)
	if err != nil {
		return packet.ErrPacket(port, fmt.Sprintf("keyvalue: encode output: %v", err))
	}
	return packet.Data(port, b)
}

// forEachInput ranges over inv.Input, invoking fn for every data packet and
// forwarding a renamed done packet once input closes. Every keyvalue
// operation is single-shot per invocation (spec §4.4's non-reentrant
// default): one Redis round trip per arriving object.
func forEachInput(ctx context.Context, inv operation.Invocation, fn func(p packet.Packet) packet.Packet) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet, 4)
	go func() {
		defer close(out)
		for p := range inv.Input {
			if p.IsDone() {
				select {
				case out <- packet.Done("output"):
				case <-ctx.Done():
					return
				}
				continue
			}
			if p.IsNoop() {
				continue
			}
			select {
			case out <- fn(p):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (h *Handler) get(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	return forEachInput(ctx, inv, func(p packet.Packet) packet.Packet {
		kv, err := decodeKeyValue(p)
		if err != nil {
			return packet.ErrPacket("output", err.Error())
		}
		val, err := h.client.Get(ctx, kv.Key).Result()
		if err == redis.Nil {
			return packet.ErrPacket("output", "keyvalue: no such key: "+kv.Key)
		}
		if err != nil {
			return packet.FatalErr("output", "keyvalue: get "+kv.Key+": "+err.Error())
		}
		var decoded any
		if err := json.Unmarshal([]byte(val), &decoded); err != nil {
			decoded = val
		}
		return encodeOut("output", decoded)
	})
}

func (h *Handler) set(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	return forEachInput(ctx, inv, func(p packet.Packet) packet.Packet {
		kv, err := decodeKeyValue(p)
		if err != nil {
			return packet.ErrPacket("output", err.Error())
		}
		b, err := json.Marshal(kv.Value)
		if err != nil {
			return packet.ErrPacket("output", "keyvalue: encode value: "+err.Error())
		}
		if err := h.client.Set(ctx, kv.Key, b, 0).Err(); err != nil {
			return packet.FatalErr("output", "keyvalue: set "+kv.Key+": "+err.Error())
		}
		return encodeOut("output", kv.Key)
	})
}

func (h *Handler) delete(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	return forEachInput(ctx, inv, func(p packet.Packet) packet.Packet {
		kv, err := decodeKeyValue(p)
		if err != nil {
			return packet.ErrPacket("output", err.Error())
		}
		if err := h.client.Del(ctx, kv.Key).Err(); err != nil {
			return packet.FatalErr("output", "keyvalue: delete "+kv.Key+": "+err.Error())
		}
		return encodeOut("output", kv.Key)
	})
}

// exists mirrors provider-keyvalue-redis/src/components/exists.rs exactly:
// redis EXISTS, success payload is the boolean, never an error for a
// missing key.
func (h *Handler) exists(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	return forEachInput(ctx, inv, func(p packet.Packet) packet.Packet {
		kv, err := decodeKeyValue(p)
		if err != nil {
			return packet.ErrPacket("output", err.Error())
		}
		n, err := h.client.Exists(ctx, kv.Key).Result()
		if err != nil {
			return packet.FatalErr("output", "keyvalue: exists "+kv.Key+": "+err.Error())
		}
		return encodeOut("output", n != 0)
	})
}

// listRemove mirrors list_remove.rs: LREM with count 1, output is the key
// itself (not the removed value or count), per the original.
func (h *Handler) listRemove(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	return forEachInput(ctx, inv, func(p packet.Packet) packet.Packet {
		kv, err := decodeKeyValue(p)
		if err != nil {
			return packet.ErrPacket("output", err.Error())
		}
		b, err := json.Marshal(kv.Value)
		if err != nil {
			return packet.ErrPacket("output", "keyvalue: encode value: "+err.Error())
		}
		if err := h.client.LRem(ctx, kv.Key, 1, b).Err(); err != nil {
			return packet.FatalErr("output", "keyvalue: list_remove "+kv.Key+": "+err.Error())
		}
		return encodeOut("output", kv.Key)
	})
}

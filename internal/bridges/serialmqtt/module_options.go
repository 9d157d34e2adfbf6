package serialmqtt

import (
	"errors"
	"fmt"

	"github.com/nerrad567/serial-mqtt-bridge/internal/protocol"
	"github.com/nerrad567/serial-mqtt-bridge/internal/registry"
)

// Script run outcomes published when a script prints nothing.
const (
	scriptSucceeded = "0"
	scriptFailed    = "1"
)

type scriptResult struct {
	dest   *registry.Device
	module string
	origin string
	name   string
	output string
	err    error
}

// bridgeModuleOptions dispatches MD_OPTIONS for a module the bridge hosts.
func (b *Bridge) bridgeModuleOptions(dest *registry.Device, md *registry.Module, origin string, cur *protocol.Cursor) {
	switch md.Type {
	case registry.TypeScript:
		opt, err := cur.Int()
		if err != nil {
			b.replyError(dest, origin, protocol.ErrMDInvOpts)
			return
		}
		switch opt {
		case protocol.OptScriptList:
			b.replyError(dest, origin, protocol.ErrMDNotIPM)
		case protocol.OptScriptExecute:
			name := cur.Rest()
			if name == "" || b.opts.Scripts == nil {
				b.replyError(dest, origin, protocol.ErrMDInvOpts)
				return
			}
			b.startScript(dest, md, origin, name)
		default:
			b.replyError(dest, origin, protocol.ErrMDInvOpts)
		}

	case registry.TypeBandwidth:
		b.reply(dest, origin, protocol.Frame(protocol.MDOptions, md.ID,
			fmt.Sprintf("%.0f", b.bwUp), fmt.Sprintf("%.0f", b.bwDown)))

	case registry.TypeSerial:
		b.reply(dest, origin, protocol.Frame(protocol.MDOptions, md.ID, boolField(b.serialReady)))

	default:
		b.replyError(dest, origin, protocol.ErrMDNotIPM)
	}
}

// startScript runs a script off the event loop. The result comes back
// through scriptDone.
func (b *Bridge) startScript(dest *registry.Device, md *registry.Module, origin, name string) {
	b.logInfo("running script", "script", name, "origin", origin)

	runner, folder := b.opts.Scripts, b.opts.ScriptFolder
	ctx := b.scriptCtx
	res := scriptResult{dest: dest, module: md.ID, origin: origin, name: name}

	b.scriptGroup.Add(1)
	go func() {
		defer b.scriptGroup.Done()
		res.output, res.err = runner.Run(ctx, folder, name)
		select {
		case b.scriptDone <- res:
		case <-ctx.Done():
		}
	}()
}

// handleScriptResult publishes a finished script's output, or a success or
// failure code when it printed nothing, to the script module's topic.
func (b *Bridge) handleScriptResult(res scriptResult) {
	if errors.Is(res.err, ErrScriptNotFound) {
		b.logWarn("script not found", "script", res.name)
		b.replyError(res.dest, res.origin, protocol.ErrMDInvOpts)
		return
	}
	if res.err != nil {
		b.logWarn("script failed", "script", res.name, "error", res.err)
	}

	md, err := res.dest.GetModule(res.module)
	if err != nil {
		b.logDebug("script module gone", "module", res.module)
		return
	}

	payload := res.output
	if payload == "" {
		payload = scriptSucceeded
		if res.err != nil {
			payload = scriptFailed
		}
	}
	_ = b.publish(md.Topic, payload)
}

package daemon

import (
	"encoding/json"
	"fmt"

	"github.com/tomo-sh/tomo/internal/timer"
)

// handleRequest dispatches the request to the appropriate engine command.
// Every method answers with the snapshot produced after applying it, so
// clients never have to issue a follow-up status call to learn the outcome.
func (d *Daemon) handleRequest(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}

	switch req.Method {
	case "status":
		return snapshotResponse(d.engine.Status())
	case "tick":
		return d.handleTick()
	case "start":
		return d.handleStart(req)
	case "pause":
		return snapshotResponse(d.engine.Pause())
	case "resume":
		return snapshotResponse(d.engine.Resume())
	case "skip":
		return snapshotResponse(d.engine.Skip())
	case "reset":
		return snapshotResponse(d.engine.Reset())
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// handleTick advances the engine. Step completions are logged here because
// the daemon is the only place guaranteed to observe every boundary marker.
func (d *Daemon) handleTick() Response {
	snap := d.engine.Tick()
	if snap.Completed != nil {
		d.logger.Info("step completed",
			"step_index", snap.Completed.StepIndex,
			"step_type", string(snap.Completed.StepType),
			"final", snap.Completed.Final)
	}
	return snapshotResponse(snap)
}

// handleStart starts the engine at the requested step, if any.
func (d *Daemon) handleStart(req *Request) Response {
	step := -1
	if req.Params != nil {
		// Params arrive as map[string]interface{} after JSON decoding;
		// round-trip through JSON to get typed StartParams.
		data, err := json.Marshal(req.Params)
		if err != nil {
			return Response{Error: fmt.Sprintf("invalid params: %v", err)}
		}
		var params StartParams
		if err := json.Unmarshal(data, &params); err != nil {
			return Response{Error: fmt.Sprintf("invalid params: %v", err)}
		}
		if params.Step != nil {
			step = *params.Step
		}
	}

	snap, err := d.engine.Start(step)
	if err != nil {
		return Response{Error: err.Error()}
	}
	d.logger.Info("timer started", "step_index", snap.StepIndex, "step_label", snap.StepLabel)
	return snapshotResponse(snap)
}

func snapshotResponse(snap timer.Snapshot) Response {
	return Response{Result: snap}
}

package daemon

// Request represents a JSON-RPC request from a client.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Response represents a JSON-RPC response to a client.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// StartParams contains parameters for the start method.
// Step selects the schedule step to start at; nil keeps the current position.
type StartParams struct {
	Step *int `json:"step,omitempty"`
}

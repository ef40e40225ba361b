package main

// StatusRequest is the JSON request sent over the status socket.
type StatusRequest struct {
	Command string `json:"command"` // "status" or "dump"
}

// StatusResponse is the JSON reply from the daemon.
type StatusResponse struct {
	State          string `json:"state"`                     // observable connection state
	MachineState   string `json:"machine_state"`             // internal state, for diagnostics
	AudioConnected bool   `json:"audio_connected"`           // live accessory confirmation
	Dump           string `json:"dump,omitempty"`            // full snapshot for "dump"
	Error          string `json:"error,omitempty"`
}

// Package effectchain runs the engines as a serial stereo rack described
// by a JSON preset.
//
// A preset lists nodes in signal order:
//
//	{"name": "ambient", "nodes": [
//	  {"id": "cab", "type": "cabinet", "params": {"ir": "4x12.wav", "doubler": true}},
//	  {"id": "verb", "type": "plate", "bypassed": false, "params": {"size": 0.7, "mix": 0.3, "mode": "trails"}}
//	]}
//
// Every node accepts "mode" (pass, mute or trails) and "freeze". Other
// parameters are engine controls in their natural ranges; controls a
// preset omits keep their current value.
package effectchain

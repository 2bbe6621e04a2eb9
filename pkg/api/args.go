package api

import "maps"

// Args carries free-form named values between the engine, capability
// calls, and event payloads
type Args map[string]any

// Merge returns a new Args with the values of other overlaid on a
func (a Args) Merge(other Args) Args {
	res := maps.Clone(a)
	if res == nil {
		res = Args{}
	}
	maps.Copy(res, other)
	return res
}

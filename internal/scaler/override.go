package scaler

// Overrides are instance-wide values that replace what the path asked for.
// A non-zero Width or Height replaces that axis; a non-nil Flags replaces
// the whole flag set. Values are never merged.
type Overrides struct {
	Width  int
	Height int
	Flags  FlagSet
}

// Apply returns req with the overrides in effect.
func (o Overrides) Apply(req ScaleRequest) ScaleRequest {
	if o.Width > 0 {
		req.Width = o.Width
	}
	if o.Height > 0 {
		req.Height = o.Height
	}
	if o.Flags != nil {
		flags := make(FlagSet, len(o.Flags))
		for k, v := range o.Flags {
			flags[k] = v
		}
		req.Flags = flags
	}
	return req
}

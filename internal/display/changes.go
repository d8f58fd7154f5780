package display

// NeedsApply reports whether applying the assignments would change
// anything on the server. It is false only when every CRTC and every
// output of the GPU already matches.
func NeedsApply(g *GPU, crtcs []*CrtcAssignment, outputs []*OutputAssignment) bool {
	for _, c := range g.Crtcs() {
		if ChangedCrtc(c, crtcs) {
			return true
		}
	}
	for _, o := range g.Outputs() {
		if ChangedOutput(o, crtcs, outputs) {
			return true
		}
	}
	return false
}

// ChangedCrtc reports whether c differs from its assignment. A CRTC
// without an assignment counts as changed when it is on.
func ChangedCrtc(c *Crtc, crtcs []*CrtcAssignment) bool {
	for _, ca := range crtcs {
		if ca.Crtc != c {
			continue
		}
		if c.Mode() != ca.Mode {
			return true
		}
		if ca.Mode == nil {
			return false
		}
		if c.Rect.X != ca.Layout.X || c.Rect.Y != ca.Layout.Y {
			return true
		}
		if c.Transform != ca.Transform {
			return true
		}
		for _, o := range ca.Outputs {
			if o.AssignedCrtc != c {
				return true
			}
		}
		return false
	}
	return c.On()
}

// ChangedOutput reports whether o differs from its assignments. An output
// with no output assignment counts as changed when it has a CRTC.
func ChangedOutput(o *Output, crtcs []*CrtcAssignment, outputs []*OutputAssignment) bool {
	found := false
	for _, oa := range outputs {
		if oa.Output != o {
			continue
		}
		if o.State.Primary != oa.Primary ||
			o.State.Presentation != oa.Presentation ||
			o.State.Underscan != oa.Underscan {
			return true
		}
		// An unset max bpc leaves whatever the driver has.
		if oa.HasMaxBPC && (!o.State.HasMaxBPC || o.State.MaxBPC != oa.MaxBPC) {
			return true
		}
		found = true
	}

	if !found {
		return o.AssignedCrtc != nil
	}

	for _, ca := range crtcs {
		for _, assigned := range ca.Outputs {
			if assigned == o && ca.Crtc == o.AssignedCrtc {
				return false
			}
		}
	}
	return true
}

package display

import "sort"

// LogicalMonitor is a region of the screen shown by one CRTC and the
// outputs attached to it.
type LogicalMonitor struct {
	Layout    Rect      `json:"layout"`
	Transform Transform `json:"transform"`
	Primary   bool      `json:"primary"`
	Mode      string    `json:"mode"`
	Refresh   float64   `json:"refresh"`
	Outputs   []string  `json:"outputs"`
}

// DeriveLogicalMonitors builds the logical layout from the live CRTCs,
// ordered top-to-bottom and left-to-right.
func DeriveLogicalMonitors(g *GPU) []LogicalMonitor {
	var monitors []LogicalMonitor
	for _, c := range g.Crtcs() {
		if !c.On() {
			continue
		}
		lm := LogicalMonitor{
			Layout:    c.Config.Layout,
			Transform: c.Config.Transform,
			Mode:      c.Mode().Name,
			Refresh:   c.Mode().RefreshRate,
		}
		for _, o := range g.OutputsOn(c) {
			lm.Outputs = append(lm.Outputs, o.Name)
			lm.Primary = lm.Primary || o.State.Primary
		}
		if len(lm.Outputs) == 0 {
			continue
		}
		monitors = append(monitors, lm)
	}
	sortMonitors(monitors)
	return monitors
}

// LogicalMonitorsFor builds the logical layout a set of assignments
// describes, without consulting the live CRTC state.
func LogicalMonitorsFor(crtcs []*CrtcAssignment, outputs []*OutputAssignment) []LogicalMonitor {
	var monitors []LogicalMonitor
	for _, ca := range crtcs {
		if ca.Mode == nil || len(ca.Outputs) == 0 {
			continue
		}
		lm := LogicalMonitor{
			Layout:    ca.Layout,
			Transform: ca.Transform,
			Mode:      ca.Mode.Name,
			Refresh:   ca.Mode.RefreshRate,
		}
		for _, o := range ca.Outputs {
			lm.Outputs = append(lm.Outputs, o.Name)
			if oa := FindOutputAssignment(outputs, o); oa != nil && oa.Primary {
				lm.Primary = true
			}
		}
		monitors = append(monitors, lm)
	}
	sortMonitors(monitors)
	return monitors
}

func sortMonitors(monitors []LogicalMonitor) {
	sort.SliceStable(monitors, func(i, j int) bool {
		a, b := monitors[i].Layout, monitors[j].Layout
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}

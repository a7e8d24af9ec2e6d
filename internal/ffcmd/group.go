package ffcmd

// Group is an ordered set of ffmpeg options. Set replaces the values of an
// existing flag in place; Replace discards everything.
type Group struct {
	order  []string
	values map[string][]string
	raw    []string
}

// Set assigns values to flag. Setting a flag again keeps its original
// position and overwrites its values.
func (g *Group) Set(flag string, values ...string) {
	if g.values == nil {
		g.values = make(map[string][]string)
	}
	if _, ok := g.values[flag]; !ok {
		g.order = append(g.order, flag)
	}
	g.values[flag] = append([]string(nil), values...)
}

// Replace makes tokens the whole content of the group.
func (g *Group) Replace(tokens []string) {
	g.order = nil
	g.values = nil
	g.raw = append([]string(nil), tokens...)
}

// Args flattens the group.
func (g *Group) Args() []string {
	out := append([]string(nil), g.raw...)
	for _, flag := range g.order {
		out = append(out, flag)
		out = append(out, g.values[flag]...)
	}
	return out
}

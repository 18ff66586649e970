package machine

// walkConnected is a capped BFS over live connections. It returns every reachable part
// except start, in visit order. expand decides whether the walk continues through a
// part; the part itself is still returned.
func walkConnected(start *Part, maxDepth, maxNodes int, expand func(*Part) bool) []*Part {
	if start == nil || maxDepth <= 0 || maxNodes <= 0 {
		return nil
	}

	type node struct {
		p     *Part
		depth int
	}
	visited := map[*Part]bool{start: true}
	q := []node{{p: start}}
	var out []*Part

	for len(q) > 0 && len(visited) <= maxNodes {
		n := q[0]
		q = q[1:]
		if n.depth >= maxDepth {
			continue
		}
		for _, c := range n.p.conns {
			if c.Broken() {
				continue
			}
			next := c.Other(n.p)
			if next == nil || visited[next] || next.destroyed {
				continue
			}
			visited[next] = true
			out = append(out, next)
			if expand == nil || expand(next) {
				q = append(q, node{p: next, depth: n.depth + 1})
			}
			if len(visited) > maxNodes {
				break
			}
		}
	}
	return out
}

// Reachable reports whether b can be reached from a over live connections.
func Reachable(a, b *Part, maxNodes int) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	for _, p := range walkConnected(a, maxNodes, maxNodes, nil) {
		if p == b {
			return true
		}
	}
	return false
}

package main

// topoSort orders table keys so that every parent precedes its children
// (Kahn's algorithm, FIFO queue for stable output). Tables caught in a
// dependency cycle cannot be ordered; they are appended at the end in
// input order and returned separately so callers can warn about them.
func topoSort(keys []string, deps map[string][]string) (ordered, cyclic []string) {
	inSet := make(map[string]bool, len(keys))
	for _, k := range keys {
		inSet[k] = true
	}

	// children[p] lists tables that depend on p; indegree counts each
	// table's unresolved parents. Edges to keys outside the set are ignored.
	children := make(map[string][]string, len(keys))
	indegree := make(map[string]int, len(keys))
	for _, k := range keys {
		indegree[k] = 0
	}
	for _, child := range keys {
		for _, parent := range deps[child] {
			if !inSet[parent] || parent == child {
				continue
			}
			children[parent] = append(children[parent], child)
			indegree[child]++
		}
	}

	var queue []string
	for _, k := range keys {
		if indegree[k] == 0 {
			queue = append(queue, k)
		}
	}

	placed := make(map[string]bool, len(keys))
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		ordered = append(ordered, k)
		placed[k] = true
		for _, c := range children[k] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if len(ordered) < len(keys) {
		for _, k := range keys {
			if !placed[k] {
				cyclic = append(cyclic, k)
				ordered = append(ordered, k)
			}
		}
	}
	return ordered, cyclic
}

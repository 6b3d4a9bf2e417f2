package engine

import (
	"encoding/json"
	"strings"

	"github.com/stratix/workflow-engine/pkg/models"
)

// findNodeByID finds a node by ID in a slice of nodes
func findNodeByID(nodes []*models.Node, nodeID string) *models.Node {
	for _, node := range nodes {
		if node.ID == nodeID {
			return node
		}
	}
	return nil
}

// collectIncomingEdges collects all edges that have the given node as target
func collectIncomingEdges(edges []*models.Edge, targetNodeID string) []*models.Edge {
	var incoming []*models.Edge
	for _, edge := range edges {
		if edge.To == targetNodeID {
			incoming = append(incoming, edge)
		}
	}
	return incoming
}

// collectOutgoingEdges collects all edges that have the given node as source
func collectOutgoingEdges(edges []*models.Edge, sourceNodeID string) []*models.Edge {
	var outgoing []*models.Edge
	for _, edge := range edges {
		if edge.From == sourceNodeID {
			outgoing = append(outgoing, edge)
		}
	}
	return outgoing
}

// getNodePriority extracts priority from node metadata, returns default if not found
func getNodePriority(node *models.Node) int {
	if node.Metadata == nil {
		return DefaultNodePriority
	}

	if priority, ok := node.Metadata["priority"]; ok {
		switch p := priority.(type) {
		case int:
			return p
		case float64:
			return int(p)
		case int64:
			return int(p)
		}
	}

	return DefaultNodePriority
}

// getNodeTimeout extracts timeout from node config, returns 0 if not found
func getNodeTimeout(node *models.Node) int64 {
	if node.Config == nil {
		return 0
	}

	if timeout, ok := node.Config["timeout"]; ok {
		switch t := timeout.(type) {
		case int:
			return int64(t)
		case int64:
			return t
		case float64:
			return int64(t)
		}
	}

	return 0
}

// getNodeMaxRetries extracts maxRetries from node config, returns 0 if not set
func getNodeMaxRetries(node *models.Node) int {
	if node.Config == nil {
		return 0
	}

	if retries, ok := node.Config["maxRetries"]; ok {
		switch r := retries.(type) {
		case int:
			return r
		case int64:
			return int(r)
		case float64:
			return int(r)
		}
	}

	return 0
}

// lookupContextPath resolves a dotted path against a set of candidate
// bags in order, first-hit: try the flat key as-is against each
// bag, then walk nested segments of each bag that has the root key, in
// order, until one resolves.
func lookupContextPath(path string, bags ...map[string]interface{}) (interface{}, bool) {
	for _, bag := range bags {
		if bag == nil {
			continue
		}
		if v, ok := bag[path]; ok {
			return v, true
		}
	}

	segments := strings.Split(path, ".")
	if len(segments) < 2 {
		return nil, false
	}

	for _, bag := range bags {
		if bag == nil {
			continue
		}
		root, ok := bag[segments[0]]
		if !ok {
			continue
		}
		current := root
		resolved := true
		for _, seg := range segments[1:] {
			m, ok := current.(map[string]interface{})
			if !ok {
				resolved = false
				break
			}
			current, ok = m[seg]
			if !ok {
				resolved = false
				break
			}
		}
		if resolved {
			return current, true
		}
	}

	return nil, false
}

// toMapInterface converts any value to map[string]interface{}.
// Fast path for already-map values, JSON roundtrip for structs.
func toMapInterface(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{"value": v}
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return map[string]interface{}{"value": v}
	}
	return result
}

package graph

import (
	"fmt"

	"cyclearb/internal/config"
)

// PathDefinition is one admissible cycle rooted at the anchor asset.
type PathDefinition struct {
	PathID string
	Edges  []Edge
	Assets []string
}

// PathModel is the static set of cycles enumerated over a MarketGraph.
type PathModel struct {
	Paths []PathDefinition
}

type pathBuilder struct {
	graph   *MarketGraph
	cfg     *config.Config
	anchor  string
	tokens  map[string]config.TokenRule
	paths   []PathDefinition
	nextID  int
}

// BuildPaths enumerates every admissible closed cycle rooted at
// cfg.AnchorAsset via depth-first traversal of g, following edge insertion
// order for determinism.
func BuildPaths(g *MarketGraph, cfg *config.Config) *PathModel {
	b := &pathBuilder{
		graph:  g,
		cfg:    cfg,
		anchor: cfg.AnchorAsset,
		tokens: cfg.Tokens,
	}

	b.walk([]Edge{}, []string{b.anchor}, map[string]bool{})

	return &PathModel{Paths: b.paths}
}

func (b *pathBuilder) walk(edges []Edge, assets []string, visited map[string]bool) {
	current := assets[len(assets)-1]

	if len(edges) > 0 && current == b.anchor {
		if len(edges) >= b.cfg.Paths.MinLength && len(edges) <= b.cfg.Paths.MaxLength {
			b.emit(edges, assets)
		}
		return
	}

	if len(edges) == b.cfg.Paths.MaxLength {
		return
	}

	for _, e := range b.graph.OutEdges(current) {
		next := e.ToAsset

		if next != b.anchor {
			rule, known := b.tokens[next]
			if !known || !rule.Enabled {
				continue
			}
			if !rule.AllowedAsBridge && !rule.AllowedAsTerminalAsset {
				continue
			}
			if !b.cfg.Paths.AllowRevisitNodes && visited[next] {
				continue
			}
		}

		nextEdges := append(append([]Edge{}, edges...), e)
		nextAssets := append(append([]string{}, assets...), next)

		if next == b.anchor {
			b.walk(nextEdges, nextAssets, visited)
			continue
		}

		rule := b.tokens[next]
		nextVisited := visited
		if !b.cfg.Paths.AllowRevisitNodes {
			nextVisited = copyVisited(visited)
			nextVisited[next] = true
		}

		if rule.AllowedAsBridge {
			b.walk(nextEdges, nextAssets, nextVisited)
		} else if rule.AllowedAsTerminalAsset {
			// Terminal-only node: the only further step permitted is a
			// direct edge back to the anchor.
			for _, back := range b.graph.OutEdges(next) {
				if back.ToAsset == b.anchor {
					closingEdges := append(append([]Edge{}, nextEdges...), back)
					closingAssets := append(append([]string{}, nextAssets...), b.anchor)
					b.walk(closingEdges, closingAssets, nextVisited)
				}
			}
		}
	}
}

func copyVisited(v map[string]bool) map[string]bool {
	out := make(map[string]bool, len(v)+1)
	for k, ok := range v {
		out[k] = ok
	}
	return out
}

func (b *pathBuilder) emit(edges []Edge, assets []string) {
	id := fmt.Sprintf("path_%d", b.nextID)
	b.nextID++
	b.paths = append(b.paths, PathDefinition{
		PathID: id,
		Edges:  append([]Edge{}, edges...),
		Assets: append([]string{}, assets...),
	})
}

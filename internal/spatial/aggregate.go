package spatial

// DedupFirst keeps the first occurrence of every tile, preserving order.
func DedupFirst(tiles []TimedTile) []TimedTile {
	seen := make(map[TileXY]struct{}, len(tiles))
	out := make([]TimedTile, 0, len(tiles))
	for _, t := range tiles {
		if _, ok := seen[t.Tile]; ok {
			continue
		}
		seen[t.Tile] = struct{}{}
		out = append(out, t)
	}
	return out
}

// AggregateZooms derives the deduplicated tile sequence for every zoom from finest down to 0.
// The result is indexed by zoom; parents come from halving the child coordinates.
func AggregateZooms(finest []TimedTile, finestZoom int) [][]TimedTile {
	perZoom := make([][]TimedTile, finestZoom+1)
	current := DedupFirst(finest)
	for zoom := finestZoom; zoom >= 0; zoom-- {
		perZoom[zoom] = current
		if zoom == 0 {
			break
		}
		parents := make([]TimedTile, len(current))
		for i, t := range current {
			parents[i] = TimedTile{Time: t.Time, Tile: TileXY{X: t.Tile.X / 2, Y: t.Tile.Y / 2}}
		}
		current = DedupFirst(parents)
	}
	return perZoom
}

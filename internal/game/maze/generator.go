// Package maze generates the shared labyrinth for the maze mini-game. Each
// round uses one maze for every participant; a fresh maze is generated only
// after somebody wins the current one.
package maze

import (
	"strings"

	"github.com/miniisland/island/internal/game/rng"
)

// Cell glyphs in the serialized grid.
const (
	wallGlyph    = '1'
	passageGlyph = '0'
)

// Maze is an immutable generated labyrinth. The grid has 2*rows+1 by
// 2*cols+1 glyph cells: odd coordinates are rooms, even coordinates are
// walls or carved passages.
type Maze struct {
	rows, cols int
	grid       [][]byte
}

// Generate carves a perfect maze of the given dimensions with an iterative
// depth-first backtracker. A perfect maze has exactly one path between any
// two rooms, so every maze is solvable from entrance to exit.
//
// Precondition: rows and cols must be positive; src must be non-nil.
func Generate(rows, cols int, src rng.Source) *Maze {
	h := 2*rows + 1
	w := 2*cols + 1
	grid := make([][]byte, h)
	for y := range grid {
		grid[y] = make([]byte, w)
		for x := range grid[y] {
			grid[y][x] = wallGlyph
		}
	}

	type cell struct{ r, c int }
	visited := make([][]bool, rows)
	for r := range visited {
		visited[r] = make([]bool, cols)
	}

	start := cell{src.Intn(rows), src.Intn(cols)}
	stack := []cell{start}
	visited[start.r][start.c] = true
	grid[2*start.r+1][2*start.c+1] = passageGlyph

	offsets := [4]cell{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]

		var candidates []cell
		for _, o := range offsets {
			next := cell{cur.r + o.r, cur.c + o.c}
			if next.r < 0 || next.r >= rows || next.c < 0 || next.c >= cols {
				continue
			}
			if !visited[next.r][next.c] {
				candidates = append(candidates, next)
			}
		}
		if len(candidates) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		next := candidates[src.Intn(len(candidates))]
		visited[next.r][next.c] = true
		grid[2*next.r+1][2*next.c+1] = passageGlyph
		// Knock out the wall between the two rooms.
		grid[cur.r+next.r+1][cur.c+next.c+1] = passageGlyph
		stack = append(stack, next)
	}

	// Entrance at the top-left room, exit at the bottom-right room.
	grid[0][1] = passageGlyph
	grid[2*rows][2*cols-1] = passageGlyph

	return &Maze{rows: rows, cols: cols, grid: grid}
}

// Rows returns the room row count.
func (m *Maze) Rows() int { return m.rows }

// Cols returns the room column count.
func (m *Maze) Cols() int { return m.cols }

// IsWall reports whether the glyph cell at (y, x) is a wall.
//
// Precondition: 0 <= y < 2*rows+1 and 0 <= x < 2*cols+1.
func (m *Maze) IsWall(y, x int) bool {
	return m.grid[y][x] == wallGlyph
}

// String serializes the glyph grid row by row, rows separated by ";".
// This is the payload carried by the maze map packet.
func (m *Maze) String() string {
	lines := make([]string, len(m.grid))
	for i, row := range m.grid {
		lines[i] = string(row)
	}
	return strings.Join(lines, ";")
}

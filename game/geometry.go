package game

// Position is a canvas coordinate. Inside the engine it is always a multiple
// of the room's grid size.
type Position struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// Add returns p translated by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Neg returns the opposite vector.
func (p Position) Neg() Position {
	return Position{X: -p.X, Y: -p.Y}
}

// Manhattan returns |a.X-b.X| + |a.Y-b.Y|.
func Manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Bounds describes the playable canvas: [0,Width) x [0,Height) in steps of Grid.
type Bounds struct {
	Width  int
	Height int
	Grid   int
}

// Contains reports whether p lies inside the canvas.
func (b Bounds) Contains(p Position) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// Cols is the number of grid columns.
func (b Bounds) Cols() int {
	if b.Grid <= 0 {
		return 0
	}
	return b.Width / b.Grid
}

// Rows is the number of grid rows.
func (b Bounds) Rows() int {
	if b.Grid <= 0 {
		return 0
	}
	return b.Height / b.Grid
}

// Cell converts grid indices to a canvas position.
func (b Bounds) Cell(col, row int) Position {
	return Position{X: col * b.Grid, Y: row * b.Grid}
}

// Snap quantizes p down to the enclosing grid cell.
func (b Bounds) Snap(p Position) Position {
	return Position{X: Quantize(p.X, b.Grid), Y: Quantize(p.Y, b.Grid)}
}

// Quantize floors v to a multiple of grid. Negative values floor toward -inf.
func Quantize(v, grid int) int {
	if grid <= 0 {
		return v
	}
	q := v / grid
	if v%grid != 0 && v < 0 {
		q--
	}
	return q * grid
}

// Directions returns the four unit grid vectors: right, left, down, up.
func Directions(grid int) [4]Position {
	return [4]Position{
		{X: grid, Y: 0},
		{X: -grid, Y: 0},
		{X: 0, Y: grid},
		{X: 0, Y: -grid},
	}
}

// Right is the direction every actor starts with.
func Right(grid int) Position {
	return Position{X: grid, Y: 0}
}

// IsUnit reports whether d is exactly one grid step along a single axis.
func IsUnit(d Position, grid int) bool {
	switch {
	case d.X == 0 && (d.Y == grid || d.Y == -grid):
		return true
	case d.Y == 0 && (d.X == grid || d.X == -grid):
		return true
	}
	return false
}

// IsReverse reports whether next points exactly opposite to current.
func IsReverse(current, next Position) bool {
	return next == current.Neg()
}

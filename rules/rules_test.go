package rules

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/brensch/snekarena/game"
)

var testBounds = game.Bounds{Width: 200, Height: 200, Grid: 20}

// dumpMovers renders movers on the grid: heads upper-case, bodies lower-case,
// proposed heads '+'.
func dumpMovers(b game.Bounds, movers []Mover) string {
	cols, rows := b.Cols(), b.Rows()
	grid := make([][]byte, rows)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", cols))
	}
	put := func(p game.Position, c byte) {
		x, y := p.X/b.Grid, p.Y/b.Grid
		if x >= 0 && x < cols && y >= 0 && y < rows {
			grid[y][x] = c
		}
	}
	for i, m := range movers {
		sym := byte('a' + i)
		for j, p := range m.Body {
			if j == 0 {
				put(p, sym-32)
			} else {
				put(p, sym)
			}
		}
		put(m.Next, '+')
	}
	var sb strings.Builder
	for _, row := range grid {
		sb.Write(row)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func logResolve(t *testing.T, name string, movers []Mover, dead map[string]Cause) {
	t.Helper()
	ids := make([]string, 0, len(dead))
	for id := range dead {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var sb strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&sb, " %s=%s", id, dead[id])
	}
	t.Logf("=== %s ===\n%sDead:%s", name, dumpMovers(testBounds, movers), sb.String())
}

func pos(x, y int) game.Position { return game.Position{X: x, Y: y} }

func TestResolve_HeadOnSwap(t *testing.T) {
	movers := []Mover{
		{ID: "a", Body: []game.Position{pos(100, 100)}, Next: pos(120, 100)},
		{ID: "b", Body: []game.Position{pos(120, 100)}, Next: pos(100, 100)},
	}
	dead := Resolve(testBounds, movers)
	logResolve(t, "head-on swap", movers, dead)

	if dead["a"] != CauseHeadOn || dead["b"] != CauseHeadOn {
		t.Fatalf("both actors should die head-on, got %v", dead)
	}
}

func TestResolve_SharedTargetKillsEveryone(t *testing.T) {
	movers := []Mover{
		{ID: "a", Body: []game.Position{pos(100, 100)}, Next: pos(120, 100)},
		{ID: "b", Body: []game.Position{pos(140, 100)}, Next: pos(120, 100)},
		{ID: "c", Body: []game.Position{pos(120, 120)}, Next: pos(120, 100)},
		{ID: "d", Body: []game.Position{pos(20, 20)}, Next: pos(40, 20)},
	}
	dead := Resolve(testBounds, movers)
	logResolve(t, "three-way", movers, dead)

	for _, id := range []string{"a", "b", "c"} {
		if dead[id] != CauseHeadOn {
			t.Fatalf("%s should die head-on, got %v", id, dead)
		}
	}
	if _, ok := dead["d"]; ok {
		t.Fatalf("bystander d should survive, got %v", dead)
	}
}

func TestResolve_WallSelfOther(t *testing.T) {
	movers := []Mover{
		{ID: "wall", Body: []game.Position{pos(180, 0)}, Next: pos(200, 0)},
		{ID: "self", Body: []game.Position{pos(60, 60), pos(80, 60), pos(80, 80), pos(60, 80)}, Next: pos(60, 80)},
		{ID: "other", Body: []game.Position{pos(0, 140)}, Next: pos(20, 140)},
		{ID: "wallB", Body: []game.Position{pos(20, 140), pos(40, 140), pos(60, 140)}, Next: pos(20, 160)},
	}
	dead := Resolve(testBounds, movers)
	logResolve(t, "wall/self/other", movers, dead)

	want := map[string]Cause{"wall": CauseWall, "self": CauseSelf, "other": CauseOther}
	for id, cause := range want {
		if dead[id] != cause {
			t.Errorf("%s: cause=%q want=%q", id, dead[id], cause)
		}
	}
	if _, ok := dead["wallB"]; ok {
		t.Errorf("wallB moves into a free cell and should survive, got %v", dead)
	}
}

func TestResolve_HeadOnActorsAreNotColliders(t *testing.T) {
	movers := []Mover{
		{ID: "a", Body: []game.Position{pos(100, 100), pos(80, 100), pos(60, 100)}, Next: pos(120, 100)},
		{ID: "b", Body: []game.Position{pos(120, 100)}, Next: pos(100, 100)},
		// c steps into a's tail cell while a is dying head-on.
		{ID: "c", Body: []game.Position{pos(60, 120)}, Next: pos(60, 100)},
	}
	dead := Resolve(testBounds, movers)
	logResolve(t, "head-on excluded", movers, dead)

	if dead["a"] != CauseHeadOn || dead["b"] != CauseHeadOn {
		t.Fatalf("a and b should die head-on, got %v", dead)
	}
	if _, ok := dead["c"]; ok {
		t.Fatalf("c should survive, head-on bodies are not colliders: %v", dead)
	}
}

func TestResolve_OrderIndependent(t *testing.T) {
	movers := []Mover{
		{ID: "a", Body: []game.Position{pos(100, 100), pos(80, 100)}, Next: pos(120, 100)},
		{ID: "b", Body: []game.Position{pos(120, 100), pos(140, 100)}, Next: pos(100, 100)},
		{ID: "c", Body: []game.Position{pos(20, 40), pos(20, 60)}, Next: pos(20, 20)},
		{ID: "d", Body: []game.Position{pos(40, 20)}, Next: pos(20, 20)},
		{ID: "e", Body: []game.Position{pos(140, 120)}, Next: pos(140, 100)},
		{ID: "f", Body: []game.Position{pos(0, 180)}, Next: pos(-20, 180)},
	}
	want := Resolve(testBounds, movers)
	logResolve(t, "reference", movers, want)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		shuffled := append([]Mover(nil), movers...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := Resolve(testBounds, shuffled)
		if len(got) != len(want) {
			t.Fatalf("trial %d: got %v want %v", trial, got, want)
		}
		for id, cause := range want {
			if got[id] != cause {
				t.Fatalf("trial %d: %s cause=%q want=%q", trial, id, got[id], cause)
			}
		}
	}
}

func TestExpireFood(t *testing.T) {
	t0 := time.Unix(0, 0)
	food := []game.Food{
		{Position: pos(0, 0), Kind: game.FoodNormal, SpawnedAt: t0},
		{Position: pos(20, 0), Kind: game.FoodGolden, SpawnedAt: t0, ExpiresAt: t0.Add(15 * time.Second)},
	}
	kept := ExpireFood(append([]game.Food(nil), food...), t0.Add(15*time.Second))
	if len(kept) != 2 {
		t.Fatalf("nothing should expire at the deadline, kept=%d", len(kept))
	}
	kept = ExpireFood(append([]game.Food(nil), food...), t0.Add(15001*time.Millisecond))
	if len(kept) != 1 || kept[0].Kind != game.FoodNormal {
		t.Fatalf("golden food should be gone at t0+15001ms, kept=%v", kept)
	}
}

func TestSpawnFoodAvoidsOccupiedCells(t *testing.T) {
	b := game.Bounds{Width: 60, Height: 60, Grid: 20}
	actors := []game.Actor{{ID: "a", Alive: true, Body: []game.Position{pos(0, 0), pos(20, 0), pos(40, 0), pos(40, 20)}}}
	existing := []game.Food{{Position: pos(0, 20)}}
	rng := rand.New(rand.NewSource(7))

	food := SpawnFood(existing, actors, b, 4, rng, time.Unix(0, 0), FoodSettings{})
	seen := map[game.Position]bool{}
	for _, f := range food {
		if actors[0].Occupies(f.Position) {
			t.Fatalf("food spawned on snake at %v", f.Position)
		}
		if seen[f.Position] {
			t.Fatalf("two food items share %v", f.Position)
		}
		seen[f.Position] = true
	}
	if len(food) < 2 {
		t.Fatalf("expected at least one new item, got %d", len(food))
	}
}

func TestSpawnFoodToleratesFullBoard(t *testing.T) {
	b := game.Bounds{Width: 40, Height: 20, Grid: 20}
	actors := []game.Actor{{ID: "a", Alive: true, Body: []game.Position{pos(0, 0), pos(20, 0)}}}
	food := SpawnFood(nil, actors, b, 3, rand.New(rand.NewSource(1)), time.Unix(0, 0), FoodSettings{})
	if len(food) != 0 {
		t.Fatalf("full board should yield no food, got %v", food)
	}
}

func TestSpawnFoodGolden(t *testing.T) {
	now := time.Unix(100, 0)
	food := SpawnFood(nil, nil, testBounds, 2, rand.New(rand.NewSource(3)), now,
		FoodSettings{GoldenChance: 1, GoldenLifetime: 15 * time.Second})
	if len(food) != 2 {
		t.Fatalf("want 2 items, got %d", len(food))
	}
	for _, f := range food {
		if f.Kind != game.FoodGolden || !f.ExpiresAt.Equal(now.Add(15*time.Second)) {
			t.Fatalf("unexpected golden item %+v", f)
		}
		if f.Position.X%20 != 0 || f.Position.Y%20 != 0 {
			t.Fatalf("food off grid at %v", f.Position)
		}
	}
}

func TestEatAt(t *testing.T) {
	food := []game.Food{{Position: pos(0, 0)}, {Position: pos(20, 0), Kind: game.FoodGolden}}
	rest, eaten, ok := EatAt(food, pos(20, 0))
	if !ok || eaten.Kind != game.FoodGolden || len(rest) != 1 {
		t.Fatalf("ok=%v eaten=%+v rest=%v", ok, eaten, rest)
	}
	if _, _, ok := EatAt(rest, pos(100, 100)); ok {
		t.Fatalf("no food at (100,100)")
	}
}

func TestSpawnPointInsetAndFree(t *testing.T) {
	b := game.Bounds{Width: 800, Height: 600, Grid: 20}
	rng := rand.New(rand.NewSource(11))
	taken := func(p game.Position) bool { return p.X == 100 }
	for i := 0; i < 200; i++ {
		p, ok := SpawnPoint(b, rng, taken)
		if !ok {
			t.Fatalf("expected a free spawn point")
		}
		if p.X < 100 || p.X >= 700 || p.Y < 100 || p.Y >= 500 {
			t.Fatalf("spawn %v outside inset area", p)
		}
		if p.X == 100 {
			t.Fatalf("spawn on taken cell %v", p)
		}
	}
}

func TestLiveBodiesIgnoresDead(t *testing.T) {
	actors := []game.Actor{
		{ID: "live", Alive: true, Body: []game.Position{pos(0, 0)}},
		{ID: "dead", Alive: false, Body: []game.Position{pos(20, 0)}},
	}
	taken := LiveBodies(actors)
	if !taken(pos(0, 0)) || taken(pos(20, 0)) {
		t.Fatalf("live bodies predicate mismatch")
	}
}
